package controllers

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// errorResponse is the JSON body of every non-2xx answer. It never carries
// secret material or internal identifiers.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorResponse{Error: code, Message: message})
}

// decodeBody unmarshals the raw JSON body into v and validates its struct
// tags.
func decodeBody(c *fiber.Ctx, v interface{}) error {
	body := c.Body()
	if len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			return errors.New("request body must be valid JSON")
		}
	}
	if err := validate.Struct(v); err != nil {
		return errors.New(validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		default:
			parts = append(parts, fe.Field()+" is invalid")
		}
	}
	return strings.Join(parts, ", ")
}
