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

// WorkshopClient scans the wellness-workshop catalog table.
type WorkshopClient struct {
	api       dynamodbAPI
	tableName string
}

// NewWorkshopClient creates a WorkshopClient for the given table.
func NewWorkshopClient(api dynamodbAPI, tableName string) (*WorkshopClient, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &WorkshopClient{api: api, tableName: tableName}, nil
}

// Search scans the catalog with the given filters. The catalog is small
// (tens of rows), so a filtered scan is the intended access pattern.
func (c *WorkshopClient) Search(ctx context.Context, filters domain.WorkshopFilters) ([]domain.Workshop, error) {
	in := &dynamodb.ScanInput{TableName: aws.String(c.tableName)}

	var parts []string
	values := make(map[string]types.AttributeValue)
	add := func(expr, placeholder, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		parts = append(parts, expr)
		values[placeholder] = &types.AttributeValueMemberS{Value: value}
	}
	add("tema = :tema", ":tema", filters.Tema)
	add("fecha = :fecha", ":fecha", filters.Fecha)
	add("modalidad = :mod", ":mod", filters.Modalidad)
	add("ubicacion = :ubi", ":ubi", filters.Ubicacion)

	if len(parts) > 0 {
		in.FilterExpression = aws.String(strings.Join(parts, " AND "))
		in.ExpressionAttributeValues = values
	}

	out, err := c.api.Scan(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: scan workshops: %w", err)
	}

	workshops := make([]domain.Workshop, 0, len(out.Items))
	for _, item := range out.Items {
		w, err := itemToWorkshop(item)
		if err != nil {
			return nil, fmt.Errorf("repository: decode workshop: %w", err)
		}
		workshops = append(workshops, w)
	}
	return workshops, nil
}

func itemToWorkshop(item map[string]types.AttributeValue) (domain.Workshop, error) {
	id, err := strAttr(item, "workshop_id")
	if err != nil {
		return domain.Workshop{}, err
	}
	titulo, err := strAttr(item, "titulo")
	if err != nil {
		return domain.Workshop{}, err
	}
	return domain.Workshop{
		ID:          id,
		Titulo:      titulo,
		Tema:        optStrAttr(item, "tema"),
		Fecha:       optStrAttr(item, "fecha"),
		HoraInicio:  optStrAttr(item, "hora_inicio"),
		HoraFin:     optStrAttr(item, "hora_fin"),
		Modalidad:   optStrAttr(item, "modalidad"),
		Ubicacion:   optStrAttr(item, "ubicacion"),
		Descripcion: optStrAttr(item, "descripcion"),
	}, nil
}
