package sprest

import (
	"context"
	"fmt"
	"strings"
)

const (
	peopleManagerAddress = "SP.UserProfiles.PeopleManager"
	myPropertiesAddress  = peopleManagerAddress + "/GetMyProperties"
	propertiesForFormat  = peopleManagerAddress + "/GetPropertiesFor(accountName=@v)?@v=%s"
)

// UserProfiles loads user profiles through the PeopleManager endpoints.
type UserProfiles struct {
	transport Transport
	logger    Logger
}

// NewUserProfiles returns a user profile client over transport.
func NewUserProfiles(transport Transport, logger Logger) (*UserProfiles, error) {
	if transport == nil {
		return nil, ErrTransportRequired
	}

	return &UserProfiles{transport: transport, logger: loggerOrNop(logger)}, nil
}

// Current loads the profile of the signed-in user.
func (u *UserProfiles) Current(ctx context.Context) (*Pending[PersonProperties], error) {
	return u.run(ctx, myPropertiesAddress), nil
}

// Get loads the profile of accountName, e.g. "i:0#.f|membership|jane@contoso.com".
func (u *UserProfiles) Get(ctx context.Context, accountName string) (*Pending[PersonProperties], error) {
	if strings.TrimSpace(accountName) == "" {
		return nil, fmt.Errorf("%w: account name is required", ErrInvalidArguments)
	}

	return u.run(ctx, fmt.Sprintf(propertiesForFormat, quoteLiteral(accountName))), nil
}

func (u *UserProfiles) run(ctx context.Context, address string) *Pending[PersonProperties] {
	u.logger.Debug("user profile request", map[string]interface{}{
		"url": address,
	})

	return fetch(ctx, u.transport, newReadDescriptor(ActionUserProfile, address), convertUserPayload)
}

func convertUserPayload(data any) (*PersonProperties, any, error) {
	object, ok := data.(map[string]any)
	if !ok || len(object) == 0 {
		return nil, nil, fmt.Errorf("%w: response does not contain a valid user result", ErrBadResponse)
	}

	result, err := ConvertPersonProperties(object)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	return result, object, nil
}
