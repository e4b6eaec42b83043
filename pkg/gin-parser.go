package pkg

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ParseAndValidate binds the JSON body into dto and runs its validate tags.
func ParseAndValidate(c *gin.Context, dto interface{}) error {
	if err := c.ShouldBindJSON(dto); err != nil {
		return err
	}
	return validate.Struct(dto)
}

// ParseAndValidateSlice binds a JSON array body and validates every element.
func ParseAndValidateSlice[T any](c *gin.Context, dst *[]T) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return err
	}
	return validate.Var(*dst, "dive")
}

// ValidationMessages flattens validator errors into field -> tag pairs for API errors.
func ValidationMessages(err error) map[string]string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Namespace()] = fe.Tag()
	}
	return out
}
