package validation

// PathID is the {id} path parameter of the admin routes.
type PathID struct {
	ID string `uri:"id" binding:"required,uuid4"`
}

// RegisterTenantRequest is the body for PUT /tenant.
type RegisterTenantRequest struct {
	Name       string `json:"name" binding:"required"`
	AdminEmail string `json:"adminEmail" binding:"required,email"`
	SubDomain  string `json:"subDomain" binding:"required,hostname_rfc1123"`
	Tier       string `json:"tier" binding:"required,tier"`
}

// UpdateTenantRequest is the body for POST /admin/tenant/{id}.
type UpdateTenantRequest struct {
	Name       *string `json:"name" binding:"omitempty,min=1"`
	AdminEmail *string `json:"adminEmail" binding:"omitempty,email"`
	Tier       *string `json:"tier" binding:"omitempty,tier"`
}

// SendInvitationRequest is the body for PUT /admin/invitation.
type SendInvitationRequest struct {
	Invitee string `json:"invitee" binding:"required,email"`
}

// SignupUser holds the names given on signup completion.
type SignupUser struct {
	GivenName  string `json:"givenName" binding:"required"`
	FamilyName string `json:"familyName" binding:"required"`
}

// CompleteSignupRequest is the body for PUT /signup.
type CompleteSignupRequest struct {
	Hash    string     `json:"hash" binding:"required"`
	Invitee string     `json:"invitee" binding:"required,email"`
	User    SignupUser `json:"user"`
}

// ForgotPasswordRequest is the body for POST /forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest is the body for POST /reset-password.
type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"required,password"`
	Hash        string `json:"hash" binding:"required"`
}

// UpdateUserRequest is the body for POST /admin/user/{id}.
type UpdateUserRequest struct {
	GivenName  *string `json:"givenName" binding:"omitempty,min=1"`
	FamilyName *string `json:"familyName" binding:"omitempty,min=1"`
	Email      *string `json:"email" binding:"omitempty,email"`
	RoleID     *string `json:"roleId" binding:"omitempty,min=1"`
}
