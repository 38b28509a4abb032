package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"intake-router/internal/domain"
)

// Advertencia is the fixed disclaimer attached to every triage answer. The
// model is never asked to produce it.
const Advertencia = "Esta orientación no reemplaza una evaluación médica profesional. " +
	"Si tus síntomas empeoran, busca atención de inmediato."

const classifierSystemPrompt = `Eres el clasificador de intención de un asistente de salud.
Decide qué servicio atiende el mensaje del usuario:
- "triage": describe síntomas o malestares y busca orientación médica.
- "doctors": busca un médico, especialista o cita.
- "workshops": pregunta por talleres de bienestar (sueño, estrés, nutrición, ejercicio).
Si el mensaje es ambiguo o mezcla temas de salud, elige "triage".
Devuelve SOLO un objeto JSON: {"servicio": "triage" | "doctors" | "workshops"}.`

func triageSystemPrompt() string {
	return strings.Join([]string{
		"Eres el asistente de triaje de una clínica en Perú. Analiza el mensaje del usuario y clasifica la urgencia en una capa de atención:",
		"1: consulta médica virtual. Síntomas leves que no impiden la vida diaria.",
		"2: médico a domicilio. Síntomas moderados que dificultan desplazarse.",
		"3: consulta presencial en clínica. Síntomas que requieren examen físico o pruebas.",
		"4: emergencia. Signos de riesgo vital: dolor de pecho con sudoración fría o dificultad para respirar, fiebre alta con rigidez de cuello, convulsiones o confusión, dolor abdominal intenso con vómitos persistentes.",
		"Si dudas entre dos capas, elige siempre la mayor.",
		"Considera TODOS los síntomas del contexto acumulado, no solo los del mensaje actual.",
		"Lista en razones cada síntoma relevante, en minúsculas y de forma corta (ej. \"fiebre alta\", \"dolor de pecho\").",
		"Si el cuadro corresponde a una especialidad, indícala en especialidad_sugerida.",
		"Si el malestar es de bienestar (estrés, insomnio), sugiere un taller en taller_sugerido y pon derivar_a en \"workshops\".",
		"Si el usuario debería agendar una cita, pon derivar_a en \"doctors\".",
		"Si falta información para clasificar, pon requiere_mas_informacion en true y UNA pregunta concreta en pregunta_pendiente.",
		"Devuelve SOLO un objeto JSON con las claves: capa (entero 1-4), razones (lista), especialidad_sugerida, taller_sugerido, accion_recomendada, requiere_mas_informacion (booleano), pregunta_pendiente, derivar_a.",
	}, "\n")
}

func doctorsSystemPrompt() string {
	return strings.Join([]string{
		"Eres el asistente de citas médicas de una clínica en Perú. Extrae del mensaje los criterios de búsqueda de médico.",
		"Criterios: especialidad, subespecialidad, modalidad (virtual | presencial | domicilio), fecha (YYYY-MM-DD), dia_semana, hora_preferida, departamento, distrito, genero_preferido, idioma_preferido.",
		"Extrae SOLO lo que el usuario menciona; deja vacío lo que no menciona. Nunca inventes valores.",
		"Si el usuario corrige un criterio del contexto acumulado, usa el valor nuevo.",
		"Si falta la especialidad, pon requiere_mas_informacion en true y pregunta por ella en pregunta_pendiente.",
		"Devuelve SOLO un objeto JSON con las claves: especialidad, subespecialidad, modalidad, fecha, dia_semana, hora_preferida, departamento, distrito, genero_preferido, idioma_preferido, requiere_mas_informacion (booleano), pregunta_pendiente.",
	}, "\n")
}

func workshopsSystemPrompt() string {
	return strings.Join([]string{
		"Eres el asistente de talleres de bienestar de una clínica en Perú. Extrae del mensaje los filtros de búsqueda de taller.",
		"Filtros: tema (sleep_hygiene | stress_management | nutrition | exercise | mindfulness), fecha (YYYY-MM-DD), horario, modalidad (virtual | presencial), ubicacion.",
		"Extrae SOLO lo que el usuario menciona; deja vacío lo que no menciona.",
		"Si el usuario corrige un filtro del contexto acumulado, usa el valor nuevo.",
		"Si no se entiende qué taller busca, pon requiere_mas_informacion en true con UNA pregunta en pregunta_pendiente.",
		"Devuelve SOLO un objeto JSON con las claves: tema, fecha, horario, modalidad, ubicacion, requiere_mas_informacion (booleano), pregunta_pendiente.",
	}, "\n")
}

func systemPromptFor(target domain.Target) string {
	switch target {
	case domain.TargetTriage:
		return triageSystemPrompt()
	case domain.TargetDoctors:
		return doctorsSystemPrompt()
	case domain.TargetWorkshops:
		return workshopsSystemPrompt()
	}
	return ""
}

// buildUserPrompt renders the accumulated context ahead of the new message
// so the extraction sees the whole conversation state. Field order follows
// the recognized schema, keeping the prompt deterministic for a given
// context.
func buildUserPrompt(prior domain.AccumulatedContext, pendingQuestion, message string) string {
	var b strings.Builder

	var lines []string
	for _, field := range domain.RecognizedFields(prior.Target) {
		if v := strings.TrimSpace(prior.Value(field)); v != "" {
			lines = append(lines, fmt.Sprintf("- %s: %s", field, v))
		}
	}
	if len(lines) > 0 {
		b.WriteString("Contexto acumulado de la conversación:\n")
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n\n")
	}
	if len(prior.Reasons) > 0 {
		b.WriteString("Síntomas mencionados antes: ")
		b.WriteString(strings.Join(prior.Reasons, ", "))
		b.WriteString("\n\n")
	}
	if q := strings.TrimSpace(pendingQuestion); q != "" {
		b.WriteString("Última pregunta hecha al usuario: ")
		b.WriteString(q)
		b.WriteString("\n\n")
	}
	b.WriteString("Mensaje del usuario: ")
	b.WriteString(strings.TrimSpace(message))
	return b.String()
}

// parseExtraction decodes a model response into the structured extraction
// for the target. Only recognized fields survive; numeric and boolean
// values tolerate the shapes models actually produce (numbers as floats or
// digit strings).
func parseExtraction(target domain.Target, raw string) (domain.ExtractionResult, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return domain.ExtractionResult{}, err
	}

	result := domain.ExtractionResult{
		Target:          target,
		Fields:          make(map[string]string),
		NeedsMoreInfo:   boolValue(obj["requiere_mas_informacion"]),
		PendingQuestion: stringValue(obj["pregunta_pendiente"]),
	}
	for _, field := range domain.RecognizedFields(target) {
		if v := stringValue(obj[field]); v != "" {
			result.Fields[field] = v
		}
	}
	if target == domain.TargetTriage {
		result.Tier = intValue(obj["capa"])
		result.Reasons = stringSlice(obj["razones"])
		result.HandOff = stringValue(obj["derivar_a"])
	}
	return result, nil
}

// parseClassification returns the target the classifier chose.
func parseClassification(raw string) (domain.Target, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return "", err
	}
	target := domain.Target(strings.ToLower(stringValue(obj["servicio"])))
	if !target.Valid() {
		return "", fmt.Errorf("usecase: unknown service %q", target)
	}
	return target, nil
}

// decodeObject finds the first top-level JSON object in the model output.
// Models occasionally wrap the object in prose or markdown fences despite
// instructions.
func decodeObject(raw string) (map[string]any, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, errors.New("usecase: no JSON object in model output")
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err != nil {
		return nil, fmt.Errorf("usecase: decode model output: %w", err)
	}
	return obj, nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func boolValue(v any) bool {
	b, _ := v.(bool)
	return b
}

func intValue(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return i
	}
	return 0
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s := stringValue(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
