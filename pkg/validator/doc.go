// Package validator checks request input with small composable rules.
//
//	err := validator.Apply(
//		validator.Required("email", req.Email),
//		validator.Email("email", req.Email),
//		validator.MinLen("password", req.Password, 6),
//	)
//	if validator.IsValidationError(err) {
//		fields := validator.Extract(err).Fields()
//	}
//
// Every failing rule is reported, in the order given. Apply returns nil when
// all rules pass.
package validator
