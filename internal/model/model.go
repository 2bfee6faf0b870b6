// Package model defines the documents stored in the global and tenant databases.
package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection names
const (
	CompanyCollection    = "companies"
	UserCollection       = "users"
	RestaurantCollection = "restaurants"
	CategoryCollection   = "categories"
	ProductCollection    = "products"
	QRCodeCollection     = "qrcodes"
	MenuCollection       = "menus"
)

// Audit holds the fields every document carries.
type Audit struct {
	CreatedBy string     `bson:"createdBy" json:"createdBy"`
	UpdatedBy string     `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updatedAt" json:"updatedAt"`
	DeletedAt *time.Time `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	DeletedBy string     `bson:"deletedBy,omitempty" json:"deletedBy,omitempty"`
}

// Stamp sets creation and update fields for a new document.
func (a *Audit) Stamp(by string, now time.Time) {
	a.CreatedBy = by
	a.CreatedAt = now
	a.UpdatedAt = now
}

// Role is a user role.
type Role string

const (
	RoleGlobalAdmin Role = "GLOBAL_ADMIN"
	RoleAdmin       Role = "ADMIN"
	RoleCustomer    Role = "CUSTOMER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleGlobalAdmin, RoleAdmin, RoleCustomer:
		return true
	}
	return false
}

// User is a platform user (global database) or a company user (tenant database).
type User struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	CognitoSub      string              `bson:"cognitoSub" json:"cognitoSub"`
	CognitoUsername string              `bson:"cognitoUsername" json:"cognitoUsername"`
	Email           string              `bson:"email" json:"email"`
	FirstName       string              `bson:"firstName" json:"firstName"`
	LastName        string              `bson:"lastName" json:"lastName"`
	Role            Role                `bson:"role" json:"role"`
	CompanyID       *primitive.ObjectID `bson:"companyId,omitempty" json:"companyId,omitempty"`
	Audit           `bson:",inline"`
}

// Restaurant is a company's venue.
type Restaurant struct {
	ID                  primitive.ObjectID       `bson:"_id,omitempty" json:"id"`
	Name                string                   `bson:"name" json:"name"`
	DisplayName         string                   `bson:"displayName" json:"displayName"`
	Description         string                   `bson:"description,omitempty" json:"description,omitempty"`
	Address             string                   `bson:"address" json:"address"`
	City                string                   `bson:"city" json:"city"`
	Country             string                   `bson:"country" json:"country"`
	Phone               string                   `bson:"phone,omitempty" json:"phone,omitempty"`
	Email               string                   `bson:"email,omitempty" json:"email,omitempty"`
	BusinessHours       map[string]BusinessHours `bson:"businessHours,omitempty" json:"businessHours,omitempty"`
	LogoURL             string                   `bson:"logoUrl,omitempty" json:"logoUrl,omitempty"`
	CoverImageURL       string                   `bson:"coverImageUrl,omitempty" json:"coverImageUrl,omitempty"`
	PrimaryColor        string                   `bson:"primaryColor,omitempty" json:"primaryColor,omitempty"`
	SecondaryColor      string                   `bson:"secondaryColor,omitempty" json:"secondaryColor,omitempty"`
	IsActive            bool                     `bson:"isActive" json:"isActive"`
	AllowOnlineOrdering bool                     `bson:"allowOnlineOrdering" json:"allowOnlineOrdering"`
	Currency            string                   `bson:"currency" json:"currency"`
	TaxRate             *float64                 `bson:"taxRate,omitempty" json:"taxRate,omitempty"`
	CompanyID           primitive.ObjectID       `bson:"companyId" json:"companyId"`
	Audit               `bson:",inline"`
}

// BusinessHours is the opening window of one weekday.
type BusinessHours struct {
	IsOpen    bool   `bson:"isOpen" json:"isOpen"`
	OpenTime  string `bson:"openTime,omitempty" json:"openTime,omitempty"`
	CloseTime string `bson:"closeTime,omitempty" json:"closeTime,omitempty"`
}

// Category groups products of a restaurant.
type Category struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	RestaurantID primitive.ObjectID `bson:"restaurantId" json:"restaurantId"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	Audit        `bson:",inline"`
}

// Product is a sellable item.
type Product struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Price        float64            `bson:"price" json:"price"`
	ImageURL     string             `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	RestaurantID primitive.ObjectID `bson:"restaurantId" json:"restaurantId"`
	CategoryID   primitive.ObjectID `bson:"categoryId" json:"categoryId"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	Audit        `bson:",inline"`
}

// QRCode links a printed code to a restaurant page.
type QRCode struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code         string             `bson:"code" json:"code"`
	QRCodeURL    string             `bson:"qrCodeUrl" json:"qrCodeUrl"`
	TargetURL    string             `bson:"targetUrl" json:"targetUrl"`
	RestaurantID primitive.ObjectID `bson:"restaurantId" json:"restaurantId"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	Audit        `bson:",inline"`
}

// Menu is an ordered selection of products.
type Menu struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name         string               `bson:"name" json:"name"`
	DisplayName  string               `bson:"displayName" json:"displayName"`
	Description  string               `bson:"description,omitempty" json:"description,omitempty"`
	ImageURL     string               `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	IsActive     bool                 `bson:"isActive" json:"isActive"`
	RestaurantID primitive.ObjectID   `bson:"restaurantId" json:"restaurantId"`
	Products     []primitive.ObjectID `bson:"products" json:"products"`
	Audit        `bson:",inline"`
}
