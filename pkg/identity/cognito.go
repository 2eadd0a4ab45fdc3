package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"go.uber.org/zap"
)

// CognitoAPI is the subset of the user pool client used here.
type CognitoAPI interface {
	AdminCreateUser(ctx context.Context, params *cip.AdminCreateUserInput, optFns ...func(*cip.Options)) (*cip.AdminCreateUserOutput, error)
	AdminDeleteUser(ctx context.Context, params *cip.AdminDeleteUserInput, optFns ...func(*cip.Options)) (*cip.AdminDeleteUserOutput, error)
	AdminUpdateUserAttributes(ctx context.Context, params *cip.AdminUpdateUserAttributesInput, optFns ...func(*cip.Options)) (*cip.AdminUpdateUserAttributesOutput, error)
	AdminSetUserPassword(ctx context.Context, params *cip.AdminSetUserPasswordInput, optFns ...func(*cip.Options)) (*cip.AdminSetUserPasswordOutput, error)
	ListUsers(ctx context.Context, params *cip.ListUsersInput, optFns ...func(*cip.Options)) (*cip.ListUsersOutput, error)
}

// Cognito implements Provider on a user pool.
type Cognito struct {
	client     CognitoAPI
	userPoolID string
	logger     *zap.Logger
}

var _ Provider = (*Cognito)(nil)

// NewCognito creates a user pool provider.
func NewCognito(client CognitoAPI, userPoolID string, logger *zap.Logger) *Cognito {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cognito{client: client, userPoolID: userPoolID, logger: logger}
}

func attr(name, value string) types.AttributeType {
	return types.AttributeType{Name: aws.String(name), Value: aws.String(value)}
}

func notFound(err error) error {
	var nf *types.UserNotFoundException
	if errors.As(err, &nf) {
		return ErrAccountNotFound
	}
	return err
}

// CreateUser creates a verified account carrying the user and tenant ids.
func (c *Cognito) CreateUser(ctx context.Context, acc Account) error {
	_, err := c.client.AdminCreateUser(ctx, &cip.AdminCreateUserInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(acc.Email),
		UserAttributes: []types.AttributeType{
			attr(AttrEmail, acc.Email),
			attr(AttrEmailVerified, "true"),
			attr(AttrUserID, acc.UserID),
			attr(AttrTenantID, acc.TenantID),
		},
	})
	var exists *types.UsernameExistsException
	if errors.As(err, &exists) {
		return ErrAccountExists
	}
	if err != nil {
		return fmt.Errorf("admin create user: %w", err)
	}
	c.logger.Debug("identity account created", zap.String("user_id", acc.UserID))
	return nil
}

// DeleteUser removes the account.
func (c *Cognito) DeleteUser(ctx context.Context, email string) error {
	_, err := c.client.AdminDeleteUser(ctx, &cip.AdminDeleteUserInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(email),
	})
	if err != nil {
		return fmt.Errorf("admin delete user: %w", notFound(err))
	}
	return nil
}

// UpdateEmail changes the email attribute of the account.
func (c *Cognito) UpdateEmail(ctx context.Context, oldEmail, newEmail string) error {
	_, err := c.client.AdminUpdateUserAttributes(ctx, &cip.AdminUpdateUserAttributesInput{
		UserPoolId:     aws.String(c.userPoolID),
		Username:       aws.String(oldEmail),
		UserAttributes: []types.AttributeType{attr(AttrEmail, newEmail)},
	})
	if err != nil {
		return fmt.Errorf("admin update user attributes: %w", notFound(err))
	}
	return nil
}

// SetPassword sets a permanent password.
func (c *Cognito) SetPassword(ctx context.Context, email, password string) error {
	_, err := c.client.AdminSetUserPassword(ctx, &cip.AdminSetUserPasswordInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(email),
		Password:   aws.String(password),
		Permanent:  true,
	})
	if err != nil {
		return fmt.Errorf("admin set user password: %w", notFound(err))
	}
	return nil
}

// ListUsers pages through the whole pool.
func (c *Cognito) ListUsers(ctx context.Context) ([]Account, error) {
	var out []Account
	pager := cip.NewListUsersPaginator(c.client, &cip.ListUsersInput{
		UserPoolId: aws.String(c.userPoolID),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		for _, u := range page.Users {
			var acc Account
			for _, a := range u.Attributes {
				switch aws.ToString(a.Name) {
				case AttrEmail:
					acc.Email = aws.ToString(a.Value)
				case AttrUserID:
					acc.UserID = aws.ToString(a.Value)
				case AttrTenantID:
					acc.TenantID = aws.ToString(a.Value)
				}
			}
			if acc.Email == "" {
				acc.Email = aws.ToString(u.Username)
			}
			out = append(out, acc)
		}
	}
	return out, nil
}
