package contract

import "errors"

var (
	ErrModelInvoke       = errors.New("model invoke failed")
	ErrSchemaViolation   = errors.New("model response violates schema")
	ErrValidation        = errors.New("validation failed")
	ErrUnknownTool       = errors.New("tool is not registered")
	ErrMissingCustomer   = errors.New("customer id is not bound")
	ErrNoPendingApproval = errors.New("no approval is pending")
	ErrApprovalPending   = errors.New("an approval is already pending")
)
