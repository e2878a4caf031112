package errors

// GraphQL error codes written to extensions.code.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeBadUserInput    = "BAD_USER_INPUT"
	CodeNotFound        = "NOT_FOUND"
	CodeInternal        = "INTERNAL_SERVER_ERROR"
)

var graphQLCodes = map[Kind]string{
	KindValidation:   CodeBadUserInput,
	KindInvalidInput: CodeBadUserInput,
	KindNotFound:     CodeNotFound,
	KindUnauthorized: CodeUnauthenticated,
	KindForbidden:    CodeForbidden,
	KindTemporary:    CodeInternal,
	KindPermanent:    CodeInternal,
	KindUnknown:      CodeInternal,
}

// GraphQLCode returns the extensions.code value for err.
func GraphQLCode(err error) string {
	return graphQLCodes[Classify(err)]
}
