package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/banksys/balance-ledger/pkg"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// IsEmpty checks if a string is empty.
func IsEmpty(s string) bool {
	return s == ""
}

func GetTraceID(c *gin.Context) (string, error) {
	traceID := c.GetString(pkg.TraceId)
	if IsEmpty(traceID) {
		return "", errors.New("trace id is empty")
	}
	return traceID, nil
}

// ParseStructEnv binds env vars to struct fields using a mapstructure tag
func ParseStructEnv(cfg interface{}) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if err := viper.BindEnv(tag); err != nil {
			return err
		}
	}
	return viper.Unmarshal(cfg)
}

// FormatConfigErrors turns validator failures into a single readable error
// naming the offending env vars, and logs the loaded (non-secret) config keys.
func FormatConfigErrors(logger *zap.Logger, err error, cfg interface{}) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	t := reflect.TypeOf(cfg)
	envNames := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		env := fieldErr.Field()
		if field, ok := t.FieldByName(fieldErr.Field()); ok {
			if tag := field.Tag.Get("mapstructure"); tag != "" {
				env = tag
			}
		}
		envNames = append(envNames, fmt.Sprintf("%s (%s)", env, fieldErr.Tag()))
		logger.Error("invalid_config_value",
			zap.String("env", env),
			zap.String("rule", fieldErr.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(envNames, ", "))
}
