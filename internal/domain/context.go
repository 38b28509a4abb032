package domain

// SourceCurrent marks a field value contributed by the in-flight turn
// rather than a stored one.
const SourceCurrent = -1

// FieldValue is a criteria value plus the index of the session turn that
// contributed it. Provenance makes merges auditable.
type FieldValue struct {
	Value      string
	SourceTurn int
}

// AccumulatedContext is the effective fact set handed to an interpreter:
// one value per recognized field, plus the ordered union of triage danger
// reasons seen across the session.
type AccumulatedContext struct {
	Target  Target
	Fields  map[string]FieldValue
	Reasons []string
}

// NewAccumulatedContext returns an empty context for the given target.
func NewAccumulatedContext(target Target) AccumulatedContext {
	return AccumulatedContext{Target: target, Fields: make(map[string]FieldValue)}
}

// Value returns the accumulated value for a field, or "" if absent.
func (c AccumulatedContext) Value(field string) string {
	return c.Fields[field].Value
}

// Has reports whether the context carries a value for the field.
func (c AccumulatedContext) Has(field string) bool {
	_, ok := c.Fields[field]
	return ok
}

// FieldMap flattens the context to a plain field -> value mapping, the
// shape handed to the extraction prompt.
func (c AccumulatedContext) FieldMap() map[string]string {
	out := make(map[string]string, len(c.Fields))
	for k, v := range c.Fields {
		out[k] = v.Value
	}
	return out
}

// TriageFields are the triage extraction fields carried across turns.
var TriageFields = []string{
	"especialidad_sugerida",
	"taller_sugerido",
	"accion_recomendada",
}

// DoctorFields are the appointment-search criteria carried across turns.
var DoctorFields = []string{
	"especialidad",
	"subespecialidad",
	"modalidad",
	"fecha",
	"dia_semana",
	"hora_preferida",
	"departamento",
	"distrito",
	"genero_preferido",
	"idioma_preferido",
}

// WorkshopFields are the wellness-workshop filters carried across turns.
var WorkshopFields = []string{
	"tema",
	"fecha",
	"horario",
	"modalidad",
	"ubicacion",
}

// RecognizedFields returns the field schema for a target.
func RecognizedFields(target Target) []string {
	switch target {
	case TargetTriage:
		return TriageFields
	case TargetDoctors:
		return DoctorFields
	case TargetWorkshops:
		return WorkshopFields
	}
	return nil
}
