package models

import (
	"github.com/wmarzella/ronin/internal/common"
)

func errRequired(entity, field string) error {
	return common.ValidationError(entity+"."+field, "is required")
}
