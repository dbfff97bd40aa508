/*
Package authsdk provides a client SDK and the shared wire types for the
yieldbook authentication service.

# Overview

The service hands out two tokens per session. The access token comes back
in the JSON body and is sent as "Authorization: Bearer <token>". The
refresh token only ever travels in the HttpOnly refresh_token cookie. The
SDKClient therefore owns a cookie jar and replays that cookie on refresh.

	client := authsdk.NewSDKClient("http://localhost:8080")

	session, err := client.Register(ctx, authsdk.RegisterRequest{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "correct horse battery",
	})

	// or, for an existing account (username or email)
	session, err = client.Login(ctx, "alice", "correct horse battery")

	me, err := session.Me(ctx)

Sessions refresh their access token through the cookie shortly before it
expires, so callers normally never call Refresh themselves.

# Error Handling

Every failed call returns an *APIError carrying the HTTP status, the
machine-readable code and, for policy violations, the offending field.
The predefined errors match by code:

	_, err := client.Login(ctx, "alice", "wrong")
	if errors.Is(err, authsdk.ErrInvalidCredentials) {
		// same answer for an unknown user and a wrong password
	}

The server side writes the same envelope through (*APIError).WriteError.
*/
package authsdk
