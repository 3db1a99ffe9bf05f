package httpdto

import (
	"errors"

	"tutor-match/internal/domain/message"
	"tutor-match/internal/domain/swipe"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators adds the domain enum tags to gin's binding validator.
// Call it once before the router serves requests.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	if err := v.RegisterValidation("swipe_action", validSwipeAction); err != nil {
		return err
	}
	return v.RegisterValidation("message_type", validMessageType)
}

func validSwipeAction(fl validator.FieldLevel) bool {
	return swipe.Action(fl.Field().String()).Valid()
}

// SYSTEM messages are server generated only.
func validMessageType(fl validator.FieldLevel) bool {
	t := message.Type(fl.Field().String())
	return t.Valid() && t != message.TypeSystem
}
