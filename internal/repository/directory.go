package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"intake-router/internal/domain"
)

const especialidadIndex = "especialidad-index"

// DirectoryClient queries the provider directory and schedule tables.
type DirectoryClient struct {
	api            dynamodbAPI
	doctorsTable   string
	schedulesTable string
}

// NewDirectoryClient creates a DirectoryClient over the two tables.
func NewDirectoryClient(api dynamodbAPI, doctorsTable, schedulesTable string) (*DirectoryClient, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(doctorsTable) == "" || strings.TrimSpace(schedulesTable) == "" {
		return nil, errors.New("repository: table names must not be empty")
	}
	return &DirectoryClient{api: api, doctorsTable: doctorsTable, schedulesTable: schedulesTable}, nil
}

// FindDoctors queries the especialidad GSI with the remaining criteria as
// filters. When the index is missing on the deployed table it falls back to
// a filtered scan, mirroring how the seed environments behave before the
// index finishes building.
func (c *DirectoryClient) FindDoctors(ctx context.Context, criteria domain.DoctorCriteria) ([]domain.Doctor, error) {
	if strings.TrimSpace(criteria.Especialidad) == "" {
		return nil, errors.New("repository: especialidad is required to search doctors")
	}

	filter, values := doctorFilter(criteria)
	values[":esp"] = &types.AttributeValueMemberS{Value: criteria.Especialidad}

	in := &dynamodb.QueryInput{
		TableName:                 aws.String(c.doctorsTable),
		IndexName:                 aws.String(especialidadIndex),
		KeyConditionExpression:    aws.String("especialidad = :esp"),
		ExpressionAttributeValues: values,
	}
	if filter != "" {
		in.FilterExpression = aws.String(filter)
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		if !strings.Contains(err.Error(), "does not have the specified index") {
			return nil, fmt.Errorf("repository: query doctors: %w", err)
		}
		scanFilter := "especialidad = :esp"
		if filter != "" {
			scanFilter += " AND " + filter
		}
		scanOut, scanErr := c.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(c.doctorsTable),
			FilterExpression:          aws.String(scanFilter),
			ExpressionAttributeValues: values,
		})
		if scanErr != nil {
			return nil, fmt.Errorf("repository: scan doctors: %w", scanErr)
		}
		return itemsToDoctors(scanOut.Items)
	}
	return itemsToDoctors(out.Items)
}

// FindSchedules returns the availability rows for the given doctors,
// optionally narrowed to one day of the week.
func (c *DirectoryClient) FindSchedules(ctx context.Context, doctorIDs []string, diaSemana string) ([]domain.Schedule, error) {
	var schedules []domain.Schedule
	for _, id := range doctorIDs {
		in := &dynamodb.QueryInput{
			TableName:              aws.String(c.schedulesTable),
			KeyConditionExpression: aws.String("doctor_id = :id"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":id": &types.AttributeValueMemberS{Value: id},
			},
		}
		if strings.TrimSpace(diaSemana) != "" {
			in.FilterExpression = aws.String("dia_semana = :dia")
			in.ExpressionAttributeValues[":dia"] = &types.AttributeValueMemberS{Value: diaSemana}
		}

		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: query schedules for %s: %w", id, err)
		}
		for _, item := range out.Items {
			schedules = append(schedules, itemToSchedule(item))
		}
	}
	return schedules, nil
}

// doctorFilter builds the filter expression for the non-key criteria.
func doctorFilter(criteria domain.DoctorCriteria) (string, map[string]types.AttributeValue) {
	var parts []string
	values := make(map[string]types.AttributeValue)

	add := func(expr, placeholder, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		parts = append(parts, expr)
		values[placeholder] = &types.AttributeValueMemberS{Value: value}
	}
	add("tipo_consulta = :mod", ":mod", criteria.Modalidad)
	add("departamento = :dep", ":dep", criteria.Departamento)
	add("distrito = :dis", ":dis", criteria.Distrito)
	add("genero = :gen", ":gen", criteria.Genero)
	add("contains(idiomas, :idi)", ":idi", criteria.Idioma)

	return strings.Join(parts, " AND "), values
}

func itemsToDoctors(items []map[string]types.AttributeValue) ([]domain.Doctor, error) {
	doctors := make([]domain.Doctor, 0, len(items))
	for _, item := range items {
		d, err := itemToDoctor(item)
		if err != nil {
			return nil, fmt.Errorf("repository: decode doctor: %w", err)
		}
		doctors = append(doctors, d)
	}
	return doctors, nil
}

func itemToDoctor(item map[string]types.AttributeValue) (domain.Doctor, error) {
	id, err := strAttr(item, "doctor_id")
	if err != nil {
		return domain.Doctor{}, err
	}
	nombre, err := strAttr(item, "nombre_completo")
	if err != nil {
		return domain.Doctor{}, err
	}
	especialidad, err := strAttr(item, "especialidad")
	if err != nil {
		return domain.Doctor{}, err
	}

	d := domain.Doctor{
		ID:              id,
		Nombre:          nombre,
		Especialidad:    especialidad,
		Subespecialidad: optStrAttr(item, "subespecialidad"),
		Genero:          optStrAttr(item, "genero"),
		Hospital:        optStrAttr(item, "hospital"),
		Departamento:    optStrAttr(item, "departamento"),
		Distrito:        optStrAttr(item, "distrito"),
		TipoConsulta:    optStrAttr(item, "tipo_consulta"),
		Descripcion:     optStrAttr(item, "descripcion_breve"),
	}
	if v, ok := item["idiomas"]; ok {
		d.Idiomas = stringList(v)
	}
	return d, nil
}

func itemToSchedule(item map[string]types.AttributeValue) domain.Schedule {
	return domain.Schedule{
		DoctorID:     optStrAttr(item, "doctor_id"),
		DiaSemana:    optStrAttr(item, "dia_semana"),
		HoraInicio:   optStrAttr(item, "hora_inicio"),
		HoraFin:      optStrAttr(item, "hora_fin"),
		Modo:         optStrAttr(item, "modo"),
		Departamento: optStrAttr(item, "departamento"),
		Distrito:     optStrAttr(item, "distrito"),
	}
}
