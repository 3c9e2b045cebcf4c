// Package service holds the student registry and the bulk CSV importer.
package service

import (
	"reflect"
	"strings"
)

// jsonFieldName makes validator report fields by their JSON name.
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}
