package errors

// NewNotFoundError creates an ErrNotFound Error.
func NewNotFoundError(kind Kind, message string, details Details) error {
	return Error{Code: ErrNotFound, Kind: kind, Message: message, Details: details}
}

// NewForbiddenError creates an ErrForbidden Error.
func NewForbiddenError(kind Kind, message string, details Details) error {
	return Error{Code: ErrForbidden, Kind: kind, Message: message, Details: details}
}

// NewInvalidStateError creates an ErrInvalidState Error.
func NewInvalidStateError(kind Kind, message string, details Details) error {
	return Error{Code: ErrInvalidState, Kind: kind, Message: message, Details: details}
}

// NewInsufficientResourceError creates an ErrInsufficientResource Error.
func NewInsufficientResourceError(kind Kind, message string, details Details) error {
	return Error{Code: ErrInsufficientResource, Kind: kind, Message: message, Details: details}
}

// NewRulesViolationError creates an ErrRulesViolation Error.
func NewRulesViolationError(kind Kind, message string, details Details) error {
	return Error{Code: ErrRulesViolation, Kind: kind, Message: message, Details: details}
}

// NewBadRequestError creates an ErrBadRequest Error.
func NewBadRequestError(kind Kind, message string, details Details) error {
	return Error{Code: ErrBadRequest, Kind: kind, Message: message, Details: details}
}

// NewInternalErrorFromErr creates an ErrInternal Error wrapping err.
func NewInternalErrorFromErr(err error, message string, details Details) error {
	return Error{Code: ErrInternal, Err: err, Message: message, Details: details}
}

// NewDBError creates an ErrInternal Error of kind KindDB for failed database
// operations. The query is added to the details when given.
func NewDBError(err error, message string, query string) error {
	var details Details
	if query != "" {
		details = Details{"query": query}
	}
	return Error{Code: ErrInternal, Kind: KindDB, Err: err, Message: message, Details: details}
}

// NewQueryToSQLError creates an ErrInternal Error for a query that could not be
// built.
func NewQueryToSQLError(err error, details Details) error {
	return Error{Code: ErrInternal, Kind: KindDB, Err: err, Message: "query to sql", Details: details}
}
