package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TenantDatabasePrefix prefixes every tenant database name and may prefix
// company ids in paths and claims.
const TenantDatabasePrefix = "COMPANY_"

// Company is a tenant. It lives in the global database.
type Company struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name              string             `bson:"name" json:"name"`
	DisplayName       string             `bson:"displayName" json:"displayName"`
	Description       string             `bson:"description,omitempty" json:"description,omitempty"`
	Subdomain         string             `bson:"subdomain" json:"subdomain"`
	Domain            string             `bson:"domain" json:"domain"`
	DatabaseName      string             `bson:"databaseName" json:"databaseName"`
	IsActive          bool               `bson:"isActive" json:"isActive"`
	VATNumber         string             `bson:"vatNumber,omitempty" json:"vatNumber,omitempty"`
	Address           string             `bson:"address,omitempty" json:"address,omitempty"`
	Email             string             `bson:"email,omitempty" json:"email,omitempty"`
	Phone             string             `bson:"phone,omitempty" json:"phone,omitempty"`
	LogoURL           string             `bson:"logoUrl,omitempty" json:"logoUrl,omitempty"`
	CognitoUserPoolID string             `bson:"cognitoUserPoolId" json:"cognitoUserPoolId"`
	CognitoClientID   string             `bson:"cognitoClientId" json:"cognitoClientId"`
	Plan              string             `bson:"plan,omitempty" json:"plan,omitempty"`
	PlanExpiresAt     *time.Time         `bson:"planExpiresAt,omitempty" json:"planExpiresAt,omitempty"`
	MaxRestaurants    int                `bson:"maxRestaurants" json:"maxRestaurants"`
	MaxUsers          int                `bson:"maxUsers" json:"maxUsers"`
	Audit             `bson:",inline"`
}

// CompanyDatabaseName is the tenant database name of a company id.
func CompanyDatabaseName(id primitive.ObjectID) string {
	return TenantDatabasePrefix + id.Hex()
}

// PublicCompany is the subset of a company exposed without authentication.
type PublicCompany struct {
	ID          primitive.ObjectID `json:"id"`
	Name        string             `json:"name"`
	DisplayName string             `json:"displayName"`
	Description string             `json:"description,omitempty"`
	Subdomain   string             `json:"subdomain"`
	Domain      string             `json:"domain"`
	LogoURL     string             `json:"logoUrl,omitempty"`
}

// Public strips internal fields.
func (c *Company) Public() PublicCompany {
	return PublicCompany{
		ID:          c.ID,
		Name:        c.Name,
		DisplayName: c.DisplayName,
		Description: c.Description,
		Subdomain:   c.Subdomain,
		Domain:      c.Domain,
		LogoURL:     c.LogoURL,
	}
}
