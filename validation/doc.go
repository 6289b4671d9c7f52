// Package validation validates request payloads.
//
// Struct tag validation uses go-playground/validator with json field names
// and a nodename tag for node identifiers:
//
//	type AddNode struct {
//	    Name string `json:"name" validate:"required,nodename"`
//	}
//	err := validation.Validate(req)
//
// Programmatic validation collects field errors:
//
//	v := validation.New().Required("source", src).NodeName("target", dst)
//	if appErr := v.Validate(); appErr != nil { ... }
//
// Both forms report INVALID_INPUT AppErrors with a "fields" detail.
package validation
