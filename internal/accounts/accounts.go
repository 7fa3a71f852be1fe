// Package accounts loads the list of accounts to register stand-alone.
//
// The source is either a file path or inline JSON. Accepted shapes:
//
//	["a@example.com", "b@example.com"]
//	[{"email": "a@example.com", "password": "..."}, {"account": "b@example.com"}]
//	{"accounts": [...]}
//
// Entries without a password get the default password.
package accounts

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/CoderDKai/oai-team-automation/internal/errors"
	"github.com/CoderDKai/oai-team-automation/internal/logging"
)

// Account is one account to register.
type Account struct {
	Email    string
	Password string
}

// Load reads accounts from source. Unusable entries are skipped with a
// warning; a source that yields no account at all is an error.
func Load(source, defaultPassword string, logger *logging.Logger) ([]Account, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	raw := strings.TrimSpace(source)
	if raw == "" {
		return nil, errors.NewValidationError("no accounts source given").WithField("file")
	}

	data := []byte(raw)
	if raw[0] != '{' && raw[0] != '[' {
		b, err := os.ReadFile(raw)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("accounts file %s: %w", raw, errors.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("read accounts file: %w", err)
		}
		data = b
	}

	accounts, err := Parse(data, defaultPassword, logger)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, errors.NewValidationError("accounts source contains no usable account").WithField("file")
	}
	return accounts, nil
}

// Parse decodes an accounts document.
func Parse(data []byte, defaultPassword string, logger *logging.Logger) ([]Account, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.NewValidationError("accounts source is not valid JSON").WithField("file")
	}

	doc := gjson.ParseBytes(data)
	if doc.IsObject() {
		doc = doc.Get("accounts")
	}
	if !doc.IsArray() {
		return nil, errors.NewValidationError("accounts source must be an array or an object with an accounts array").WithField("accounts")
	}

	var out []Account
	for i, item := range doc.Array() {
		acct := Account{Password: defaultPassword}
		switch {
		case item.Type == gjson.String:
			acct.Email = strings.TrimSpace(item.String())
		case item.IsObject():
			acct.Email = strings.TrimSpace(firstString(item, "email", "account"))
			if pw := strings.TrimSpace(item.Get("password").String()); pw != "" {
				acct.Password = pw
			}
		default:
			logger.Warn("unsupported accounts entry skipped", "index", i+1)
			continue
		}
		if acct.Email == "" {
			logger.Warn("accounts entry without email skipped", "index", i+1)
			continue
		}
		out = append(out, acct)
	}
	return out, nil
}

func firstString(r gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
