package models

import (
	"time"

	"natours/api/internal/ids"
	"natours/api/internal/resource"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

// Elevated roles see hidden records when they ask for them and may write
// admin-only fields.
func (r Role) Elevated() bool {
	return r == RoleAdmin
}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return true
	}
	return false
}

// Stored field names of an account record.
const (
	AccountName                 = "name"
	AccountEmail                = "email"
	AccountPhoto                = "photo"
	AccountRole                 = "role"
	AccountPassword             = "password"
	AccountPasswordChangedAt    = "passwordChangedAt"
	AccountPasswordResetToken   = "passwordResetToken"
	AccountPasswordResetExpires = "passwordResetExpires"
	AccountActive               = resource.ActiveField
	AccountCreatedAt            = "createdAt"
)

const DefaultPhoto = "default.jpg"

type Account struct {
	ID                   string     `mapstructure:"id"`
	Name                 string     `mapstructure:"name"`
	Email                string     `mapstructure:"email"`
	Photo                string     `mapstructure:"photo"`
	Role                 Role       `mapstructure:"role"`
	PasswordHash         string     `mapstructure:"password"`
	PasswordChangedAt    *time.Time `mapstructure:"passwordChangedAt"`
	PasswordResetToken   string     `mapstructure:"passwordResetToken"`
	PasswordResetExpires *time.Time `mapstructure:"passwordResetExpires"`
	Active               *bool      `mapstructure:"active"`
	CreatedAt            time.Time  `mapstructure:"createdAt"`
}

// IsActive treats a missing marker as active.
func (a Account) IsActive() bool {
	return a.Active == nil || *a.Active
}

var AccountDescriptor = resource.MustNew(resource.Descriptor{
	Name: "users",
	Fields: []resource.Field{
		{Name: AccountName, Type: resource.String, Mutability: resource.OwnerWritable, Required: true, Trim: true,
			Rules: "max=80", Filterable: true, Sortable: true},
		{Name: AccountEmail, Type: resource.String, Mutability: resource.OwnerWritable, Required: true, Unique: true,
			Trim: true, Lower: true, Rules: "email", Filterable: true, Sortable: true},
		{Name: AccountPhoto, Type: resource.String, Mutability: resource.OwnerWritable, Default: DefaultPhoto},
		{Name: AccountRole, Type: resource.String, Mutability: resource.AdminOnly, Default: string(RoleUser),
			Rules: "oneof=user guide lead-guide admin", Filterable: true, Sortable: true},
		{Name: AccountPassword, Type: resource.String, Secret: true},
		{Name: AccountPasswordChangedAt, Type: resource.Time, Internal: true},
		{Name: AccountPasswordResetToken, Type: resource.String, Secret: true},
		{Name: AccountPasswordResetExpires, Type: resource.Time, Secret: true},
		{Name: AccountActive, Type: resource.Bool, Mutability: resource.AdminOnly, Default: true, Internal: true},
		{Name: AccountCreatedAt, Type: resource.Time, Default: now, Filterable: true, Sortable: true},
	},
	DefaultSort:  AccountCreatedAt,
	DefaultLimit: 100,
	MaxLimit:     100,
	SoftDelete:   true,
	OwnerField:   resource.IDField,
})

func now() any { return time.Now().UTC() }

// NewAccountRecord builds the stored form of a freshly signed up account.
func NewAccountRecord(fields resource.Record, passwordHash []byte) resource.Record {
	rec := fields.Clone()
	rec[resource.IDField] = ids.New()
	rec[AccountPassword] = string(passwordHash)
	return rec
}
