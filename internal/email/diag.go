package email

import (
	"errors"
	"net"
	"strings"
)

// SMTPDiag clasifica un error SMTP para logs y para decidir si reintentar.
type SMTPDiag struct {
	Code      string // timeout | dial | tls | auth | rate_limited | invalid_recipient | rejected | network | unknown
	Temporary bool
}

type diagRule struct {
	code      string
	temporary bool
	needles   []string
}

// el orden importa: la primera regla que matchea gana
var diagRules = []diagRule{
	{"timeout", true, []string{"i/o timeout", "timeout"}},
	{"dial", true, []string{"connection refused", "no such host", "dial tcp"}},
	{"tls", false, []string{"x509:", "tls: handshake", "certificate"}},
	{"auth", false, []string{"535", "5.7.8", "authentication failed", "username and password not accepted"}},
	{"rate_limited", true, []string{"421", "451", "4.7.0", "try again later", "rate limit"}},
	{"invalid_recipient", false, []string{"5.1.1", "user unknown", "mailbox not found"}},
	{"rejected", false, []string{"5.7.1", "message rejected", "dmarc", "spf"}},
}

func DiagnoseSMTP(err error) SMTPDiag {
	if err == nil {
		return SMTPDiag{Code: "unknown"}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return SMTPDiag{Code: "timeout", Temporary: true}
	}
	s := strings.ToLower(err.Error())
	for _, r := range diagRules {
		for _, n := range r.needles {
			if strings.Contains(s, n) {
				return SMTPDiag{Code: r.code, Temporary: r.temporary}
			}
		}
	}
	if ne != nil {
		return SMTPDiag{Code: "network", Temporary: true}
	}
	return SMTPDiag{Code: "unknown"}
}
