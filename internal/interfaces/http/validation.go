package http

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// bindJSON parsea el body y valida las etiquetas del DTO. Devuelve nil o el error a responder.
func bindJSON(c *fiber.Ctx, dest interface{}) *dto.ErrorResponse {
	if err := c.BodyParser(dest); err != nil {
		return &dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"}
	}
	if err := validate.Struct(dest); err != nil {
		return validationResponse(err)
	}
	return nil
}

func validationResponse(err error) *dto.ErrorResponse {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()}
	}
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = validationMessage(fe)
	}
	return &dto.ErrorResponse{Code: "VALIDATION", Message: "validación fallida", Details: details}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "es requerido"
	case "max":
		return fmt.Sprintf("máximo %s caracteres", fe.Param())
	case "datetime":
		return "fecha inválida, formato " + dto.DateLayout
	case "nefield":
		return "debe ser distinto de " + fe.Param()
	}
	return "es inválido"
}

// parseDate convierte "2006-01-02" en fecha; vacío es nil.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dto.DateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("fecha inválida %q: formato %s", s, dto.DateLayout)
	}
	return &t, nil
}

// parseDecimalQuery lee un decimal opcional de la query.
func parseDecimalQuery(c *fiber.Ctx, name string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s inválido: %q", name, raw)
	}
	return &d, nil
}

// parseBoolQuery lee un booleano opcional de la query (por defecto false).
func parseBoolQuery(c *fiber.Ctx, name string) (bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s inválido: %q", name, raw)
	}
	return b, nil
}

// parsePage lee page y page_size de la query.
func parsePage(c *fiber.Ctx) (dto.PageRequest, *dto.ErrorResponse) {
	var p dto.PageRequest
	if err := c.QueryParser(&p); err != nil {
		return p, &dto.ErrorResponse{Code: "VALIDATION", Message: "paginación inválida"}
	}
	if err := validate.Struct(p); err != nil {
		return p, validationResponse(err)
	}
	return p, nil
}
