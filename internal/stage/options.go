package stage

import ferrors "git.home.luguber.info/inful/buildbot/internal/foundation/errors"

// Option configures a Stage.
type Option func(*Stage)

// WithName overrides the type-derived stage name.
func WithName(name string) Option {
	return func(s *Stage) { s.name = name }
}

// WithSuffix distinguishes multiple instances of one stage type.
func WithSuffix(suffix string) Option {
	return func(s *Stage) { s.suffix = suffix }
}

// WithOption skips the stage when the named run option is present and false.
func WithOption(name string) Option {
	return func(s *Stage) { s.option = name }
}

// WithConfigFlag skips the stage when the named build flag is present and false.
func WithConfigFlag(name string) Option {
	return func(s *Stage) { s.configFlag = name }
}

// WithPassThrough replaces the categories of errors that Run returns
// unchanged instead of classifying.
func WithPassThrough(categories ...ferrors.ErrorCategory) Option {
	return func(s *Stage) { s.passThrough = categories }
}

func withAttempt(n int) Option {
	return func(s *Stage) { s.attempt = n }
}
