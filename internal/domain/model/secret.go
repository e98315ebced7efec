package model

import (
	"errors"
	"strconv"
)

// Input validation errors for the credential access endpoint. Messages are
// deliberately generic so they never reveal physical table names.
var (
	ErrInvalidSelector = errors.New("invalid credential type")
	ErrInvalidID       = errors.New("invalid record id")
)

// SecretType identifies one of the credential-bearing tables. It is a closed
// enumeration: the only way to obtain a table name is through Table.
type SecretType string

const (
	SecretTypeServer            SecretType = "server"
	SecretTypeCredential        SecretType = "credential"
	SecretTypeHostingAccount    SecretType = "hosting_account"
	SecretTypeHostingFTPAccount SecretType = "hosting_ftp_account"
	SecretTypeHostingEmail      SecretType = "hosting_email"
)

// SecretTypes returns every secret type in the fixed order rotation visits them.
func SecretTypes() []SecretType {
	return []SecretType{
		SecretTypeServer,
		SecretTypeCredential,
		SecretTypeHostingAccount,
		SecretTypeHostingFTPAccount,
		SecretTypeHostingEmail,
	}
}

// ParseSecretType maps an external selector onto a SecretType.
// Anything outside the allow-list yields ErrInvalidSelector.
func ParseSecretType(raw string) (SecretType, error) {
	t := SecretType(raw)
	if t.Table() == "" {
		return "", ErrInvalidSelector
	}
	return t, nil
}

// Table returns the physical table holding secrets of this type, or "" for an
// unknown type.
func (t SecretType) Table() string {
	switch t {
	case SecretTypeServer:
		return "servers"
	case SecretTypeCredential:
		return "credentials"
	case SecretTypeHostingAccount:
		return "hosting_accounts"
	case SecretTypeHostingFTPAccount:
		return "hosting_ftp_accounts"
	case SecretTypeHostingEmail:
		return "hosting_emails"
	default:
		return ""
	}
}

// AdminOnly reports whether revealing secrets of this type requires RoleAdmin.
func (t SecretType) AdminOnly() bool {
	return t == SecretTypeServer
}

// SecretRecord is one row of a credential-bearing table. Secret holds the
// encrypted form and is empty when the row carries no password.
type SecretRecord struct {
	Type   SecretType
	ID     int64
	Secret string
}

// ParseRecordID parses a positive integer row id.
func ParseRecordID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}
