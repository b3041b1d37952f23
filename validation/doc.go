// Package validation checks request and query structs against
// go-playground/validator tags and reports failures as INVALID_INPUT
// AppErrors with one FieldError per failed field.
//
//	type mergeRequest struct {
//	    SourceID string `json:"source_id" validate:"required"`
//	    TargetID string `json:"target_id" validate:"required,nefield=SourceID"`
//	}
//	if err := validation.Validate(req); err != nil { ... }
package validation
