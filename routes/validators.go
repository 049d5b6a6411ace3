package routes

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/models"
)

var registerOnce sync.Once

// RegisterValidators installs the orderstatus and paymentstatus binding tags
// on gin's validator. Safe to call more than once.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
			return
		}
		if err = v.RegisterValidation("orderstatus", func(fl validator.FieldLevel) bool {
			return models.OrderStatus(fl.Field().String()).Valid()
		}); err != nil {
			return
		}
		err = v.RegisterValidation("paymentstatus", func(fl validator.FieldLevel) bool {
			return models.PaymentStatus(fl.Field().String()).Valid()
		})
	})
	return err
}
