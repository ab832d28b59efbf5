package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleRenter Role = "renter"
)

func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleRenter
}

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"`
	Role      Role               `bson:"role" json:"role"`
	Phone     string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Address   string             `bson:"address,omitempty" json:"address,omitempty"`
	Pincode   string             `bson:"pincode,omitempty" json:"pincode,omitempty"`
	District  string             `bson:"district,omitempty" json:"district,omitempty"`
	State     string             `bson:"state,omitempty" json:"state,omitempty"`
	Photo     string             `bson:"photo" json:"photo"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ProfileUpdate holds the fields a user may change on their own profile.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Name     *string `json:"name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty"`
	Pincode  *string `json:"pincode,omitempty"`
	District *string `json:"district,omitempty"`
	State    *string `json:"state,omitempty"`
	Photo    *string `json:"photo,omitempty"`
}

func (u ProfileUpdate) Apply(user *User) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&user.Name, u.Name)
	set(&user.Phone, u.Phone)
	set(&user.Address, u.Address)
	set(&user.Pincode, u.Pincode)
	set(&user.District, u.District)
	set(&user.State, u.State)
	set(&user.Photo, u.Photo)
}

// UserSummary is what other parties get to see of an account.
type UserSummary struct {
	ID       primitive.ObjectID `json:"_id"`
	Name     string             `json:"name"`
	Role     Role               `json:"role"`
	Phone    string             `json:"phone,omitempty"`
	Email    string             `json:"email,omitempty"`
	State    string             `json:"state,omitempty"`
	District string             `json:"district,omitempty"`
	Photo    string             `json:"photo,omitempty"`
}

func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:       u.ID,
		Name:     u.Name,
		Role:     u.Role,
		Phone:    u.Phone,
		Email:    u.Email,
		State:    u.State,
		District: u.District,
		Photo:    u.Photo,
	}
}
