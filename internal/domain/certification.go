package domain

// PassingScore is the inclusive percentage at which a quiz earns a certificate.
const PassingScore = 80

// Decision is the outcome of a finished quiz.
type Decision string

const (
	Pass Decision = "pass"
	Fail Decision = "fail"
)

// Decide maps a percentage score to Pass or Fail.
func Decide(percentage int) Decision {
	if percentage >= PassingScore {
		return Pass
	}
	return Fail
}

// Passed reports whether d is Pass.
func (d Decision) Passed() bool { return d == Pass }
