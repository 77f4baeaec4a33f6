package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/recordvault/access-api/internal/model"
)

// Custom binding validations for the closed domain enums, so malformed input
// is rejected at the transport edge with the rest of the field errors.
func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return model.Category(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("reqcategory", func(fl validator.FieldLevel) bool {
		return model.Category(fl.Field().String()).ValidRequested()
	})
	_ = v.RegisterValidation("accesstype", func(fl validator.FieldLevel) bool {
		return model.AccessType(fl.Field().String()).Valid()
	})
}
