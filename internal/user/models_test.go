package user

import (
	"errors"
	"testing"
)

func validInput() CreateUserInput {
	return CreateUserInput{
		Username: "camille",
		Email:    "camille@example.com",
		Password: "secret1",
		Name:     "Camille Perrin",
	}
}

func TestValidateCreate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateUserInput)
		wantErr error
	}{
		{"valid", func(in *CreateUserInput) {}, nil},
		{"username too short", func(in *CreateUserInput) { in.Username = "ab" }, ErrUsernameLength},
		{"username too long", func(in *CreateUserInput) {
			for len(in.Username) <= 50 {
				in.Username += "x"
			}
		}, ErrUsernameLength},
		{"bad email", func(in *CreateUserInput) { in.Email = "not-an-email" }, ErrEmailInvalid},
		{"short password", func(in *CreateUserInput) { in.Password = "abc" }, ErrPasswordTooShort},
		{"missing name", func(in *CreateUserInput) { in.Name = "  " }, ErrNameRequired},
		{"bad category", func(in *CreateUserInput) { in.Category = "Sports" }, ErrBadCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			err := in.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCreateDefaultsCategory(t *testing.T) {
	in := validInput()
	if err := in.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Category != "Tech" {
		t.Errorf("category should default to Tech, got %q", in.Category)
	}
}

func TestValidateUpdate(t *testing.T) {
	bad := "nope@"
	if err := (&UpdateUserInput{Email: &bad}).Validate(); !errors.Is(err, ErrEmailInvalid) {
		t.Errorf("expected ErrEmailInvalid, got %v", err)
	}
	cat := "Design"
	if err := (&UpdateUserInput{Category: &cat}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFriendHelpers(t *testing.T) {
	u := &User{
		Friends: []string{"f-1"},
		FriendRequests: []FriendRequest{
			{ID: "r-1", From: "f-2", Status: RequestPending},
			{ID: "r-2", From: "f-3", Status: RequestRejected},
		},
	}

	if !u.HasFriend("f-1") || u.HasFriend("f-2") {
		t.Error("HasFriend should match the friend list exactly")
	}
	if u.PendingRequestFrom("f-2") == nil {
		t.Error("pending request from f-2 should be found")
	}
	if u.PendingRequestFrom("f-3") != nil {
		t.Error("a rejected request is not pending")
	}
}
