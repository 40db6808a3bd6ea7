package sprest_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/fivetwenty-io/sprest/pkg/sprest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserProfiles_Current(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{respond: jsonResponse(http.StatusOK, envelope(t, personPayload()))}
	users, err := sprest.NewUserProfiles(transport, nil)
	require.NoError(t, err)

	pending, err := users.Current(context.Background())
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, pending.Future))

	assert.Equal(t, "Jane Doe", pending.Value().DisplayName)
	assert.Equal(t, "R&D", pending.Value().ProfileProperties["Department"])
	assert.Equal(t, "SP.UserProfiles.PeopleManager/GetMyProperties", transport.Requests()[0].URL)
}

func TestUserProfiles_Get(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{respond: jsonResponse(http.StatusOK, envelope(t, personPayload()))}
	users, err := sprest.NewUserProfiles(transport, nil)
	require.NoError(t, err)

	pending, err := users.Get(context.Background(), "i:0#.f|membership|o'neil@contoso.com")
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, pending.Future))

	assert.Equal(t,
		"SP.UserProfiles.PeopleManager/GetPropertiesFor(accountName=@v)?@v='i:0#.f|membership|o''neil@contoso.com'",
		transport.Requests()[0].URL)
}

func TestUserProfiles_Get_BlankName(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	users, err := sprest.NewUserProfiles(transport, nil)
	require.NoError(t, err)

	_, err = users.Get(context.Background(), " ")
	require.Error(t, err)
	assert.True(t, sprest.IsInvalidArguments(err))
	assert.Empty(t, transport.Requests())
}

func TestUserProfiles_EmptyPayload(t *testing.T) {
	t.Parallel()

	users, err := sprest.NewUserProfiles(&fakeTransport{respond: jsonResponse(http.StatusOK, `{"d":{}}`)}, nil)
	require.NoError(t, err)

	pending, err := users.Current(context.Background())
	require.NoError(t, err)

	err = waitFuture(t, pending.Future)
	require.Error(t, err)
	assert.True(t, sprest.IsBadResponse(err))
}

func TestUserProfiles_TransportError(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{respond: func(*sprest.RequestDescriptor) (*sprest.TransportResponse, error) {
		return nil, &sprest.ResponseError{StatusCode: http.StatusUnauthorized}
	}}
	users, err := sprest.NewUserProfiles(transport, nil)
	require.NoError(t, err)

	pending, err := users.Current(context.Background())
	require.NoError(t, err)

	err = waitFuture(t, pending.Future)
	assert.True(t, sprest.IsUnauthorized(err))

	_, err = sprest.NewUserProfiles(nil, nil)
	assert.ErrorIs(t, err, sprest.ErrTransportRequired)
}
