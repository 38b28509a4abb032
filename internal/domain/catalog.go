package domain

// Doctor is one entry of the provider directory table.
type Doctor struct {
	ID             string   `json:"doctor_id"`
	Nombre         string   `json:"nombre_completo"`
	Genero         string   `json:"genero,omitempty"`
	Especialidad   string   `json:"especialidad"`
	Subespecialidad string  `json:"subespecialidad,omitempty"`
	Idiomas        []string `json:"idiomas,omitempty"`
	Hospital       string   `json:"hospital,omitempty"`
	Departamento   string   `json:"departamento,omitempty"`
	Distrito       string   `json:"distrito,omitempty"`
	TipoConsulta   string   `json:"tipo_consulta,omitempty"`
	Descripcion    string   `json:"descripcion_breve,omitempty"`
}

// Schedule is one availability row of the schedules table.
type Schedule struct {
	DoctorID     string `json:"doctor_id"`
	DiaSemana    string `json:"dia_semana"`
	HoraInicio   string `json:"hora_inicio"`
	HoraFin      string `json:"hora_fin"`
	Modo         string `json:"modo"`
	Departamento string `json:"departamento,omitempty"`
	Distrito     string `json:"distrito,omitempty"`
}

// Workshop is one entry of the wellness-workshop catalog.
type Workshop struct {
	ID          string `json:"workshop_id"`
	Titulo      string `json:"titulo"`
	Tema        string `json:"tema"`
	Fecha       string `json:"fecha"`
	HoraInicio  string `json:"hora_inicio,omitempty"`
	HoraFin     string `json:"hora_fin,omitempty"`
	Modalidad   string `json:"modalidad,omitempty"`
	Ubicacion   string `json:"ubicacion,omitempty"`
	Descripcion string `json:"descripcion,omitempty"`
}

// DoctorCriteria are the structured search criteria an interpreter derives
// from the accumulated conversation context. Especialidad is the query key;
// the rest narrow the result as filters.
type DoctorCriteria struct {
	Especialidad string
	Modalidad    string
	Departamento string
	Distrito     string
	Genero       string
	Idioma       string
	DiaSemana    string
}

// WorkshopFilters narrow a catalog search. All fields are optional; an
// empty filter set lists the whole catalog.
type WorkshopFilters struct {
	Tema      string
	Fecha     string
	Modalidad string
	Ubicacion string
}

// RAGDocument is a knowledge-base chunk returned by the retrieval worker.
type RAGDocument struct {
	Content string  `json:"content"`
	Source  string  `json:"source,omitempty"`
	Score   float64 `json:"score,omitempty"`
}
