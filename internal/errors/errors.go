// Package errors provides unified error handling with structured error codes.
// Codes are shared with the recognition service and travel as gRPC status details.
package errors

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Code classifies an AppError.
type Code int

const (
	Unknown Code = iota
	Internal
	InvalidArgument
	NotFound
	Unavailable
	Timeout
	Cancelled
	RecognitionFailed
	RecognitionInvalidImage
	ParseFailed
	ValidationFailed
	ConfigInvalid
	TemplateInvalid
	TemplateNotFound
	CaptureFailed
)

var codeNames = [...]string{
	"UNKNOWN",
	"INTERNAL",
	"INVALID_ARGUMENT",
	"NOT_FOUND",
	"UNAVAILABLE",
	"TIMEOUT",
	"CANCELLED",
	"RECOGNITION_FAILED",
	"RECOGNITION_INVALID_IMAGE",
	"PARSE_FAILED",
	"VALIDATION_FAILED",
	"CONFIG_INVALID",
	"TEMPLATE_INVALID",
	"TEMPLATE_NOT_FOUND",
	"CAPTURE_FAILED",
}

func (c Code) String() string {
	if c < 0 || int(c) >= len(codeNames) {
		return codeNames[Unknown]
	}
	return codeNames[c]
}

// codeFromString is the inverse of Code.String.
func codeFromString(s string) Code {
	for i, n := range codeNames {
		if n == s {
			return Code(i)
		}
	}
	return Unknown
}

// grpcCodeMap maps error codes to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	Unknown:                 codes.Unknown,
	Internal:                codes.Internal,
	InvalidArgument:         codes.InvalidArgument,
	NotFound:                codes.NotFound,
	Unavailable:             codes.Unavailable,
	Timeout:                 codes.DeadlineExceeded,
	Cancelled:               codes.Canceled,
	RecognitionFailed:       codes.Internal,
	RecognitionInvalidImage: codes.InvalidArgument,
	ParseFailed:             codes.InvalidArgument,
	ValidationFailed:        codes.FailedPrecondition,
	ConfigInvalid:           codes.InvalidArgument,
	TemplateInvalid:         codes.InvalidArgument,
	TemplateNotFound:        codes.NotFound,
	CaptureFailed:           codes.Unavailable,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// ToProto converts to the error detail message carried in gRPC status details.
func (e *AppError) ToProto() *structpb.Struct {
	fields := map[string]any{
		"code":    e.Code.String(),
		"message": e.Message,
	}
	if len(e.Metadata) > 0 {
		md := make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			md[k] = v
		}
		fields["metadata"] = md
	}
	detail, _ := structpb.NewStruct(fields)
	return detail
}

// GRPCStatus returns a gRPC status with the error detail attached.
func (e *AppError) GRPCStatus() *status.Status {
	st := status.New(e.GRPCCode(), e.Error())
	detail, err := anypb.New(e.ToProto())
	if err != nil {
		return st
	}
	if withDetail, err := st.WithDetails(detail); err == nil {
		return withDetail
	}
	return st
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromGRPCError extracts AppError from a gRPC error if present.
func FromGRPCError(err error) *AppError {
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: Unknown, Message: err.Error(), Cause: err}
	}

	for _, detail := range st.Details() {
		if s, ok := detail.(*structpb.Struct); ok {
			return fromDetail(s, err)
		}
		if a, ok := detail.(*anypb.Any); ok {
			var s structpb.Struct
			if a.UnmarshalTo(&s) == nil {
				return fromDetail(&s, err)
			}
		}
	}

	// Fallback: map gRPC code to our error code
	return &AppError{Code: grpcToErrorCode(st.Code()), Message: st.Message(), Cause: err}
}

func fromDetail(s *structpb.Struct, cause error) *AppError {
	fields := s.GetFields()
	appErr := &AppError{
		Code:    codeFromString(fields["code"].GetStringValue()),
		Message: fields["message"].GetStringValue(),
		Cause:   cause,
	}
	if md := fields["metadata"].GetStructValue(); md != nil {
		for k, v := range md.GetFields() {
			appErr.WithMetadata(k, v.GetStringValue())
		}
	}
	return appErr
}

// grpcToErrorCode maps gRPC codes back to our error codes (best effort).
func grpcToErrorCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return InvalidArgument
	case codes.NotFound:
		return NotFound
	case codes.Unavailable, codes.ResourceExhausted:
		return Unavailable
	case codes.DeadlineExceeded:
		return Timeout
	case codes.Canceled:
		return Cancelled
	case codes.Internal:
		return Internal
	case codes.FailedPrecondition:
		return ConfigInvalid
	default:
		return Unknown
	}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	switch appErr.Code {
	case Unavailable, Timeout, RecognitionFailed, CaptureFailed:
		return true
	default:
		return false
	}
}
