package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type signup struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Nickname string `validate:"omitempty,max=5"`
}

func TestValidate(t *testing.T) {
	assert.Nil(t, Validate(signup{Username: "alice", Email: "a@x.com"}))

	errs := Validate(signup{Username: "al", Email: "nope", Nickname: "toolongname"})
	assert.Equal(t, map[string]string{
		"username": "min",
		"email":    "email",
		"Nickname": "max",
	}, errs)
}

func TestVar(t *testing.T) {
	assert.True(t, Var("a@x.com", "email"))
	assert.False(t, Var("a@", "email"))
}
