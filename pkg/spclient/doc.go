// Package spclient provides the primary entry point for constructing a
// SharePoint REST client that implements the sprest.Client interface.
//
// It layers configuration, HTTP transport, authentication, form digests and
// tenant discovery on top of the list, search and user profile types defined
// in the sprest package. Most applications import spclient to build a
// client, then use the returned sprest.Client to define lists and run
// queries.
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/sprest/pkg/sprest"
//	  "github.com/fivetwenty-io/sprest/pkg/spclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  // With an access token you already have:
//	  cli, err := spclient.New(ctx, &sprest.Config{
//	    SiteURL:     "https://contoso.sharepoint.com/sites/team",
//	    AccessToken: "eyJ0eXAiOi...", // bearer token
//	  })
//
//	  // Or with an Azure AD app registration. When no token URL is set,
//	  // spclient asks the site for its tenant and uses that tenant's v2
//	  // token endpoint.
//	  cli, err = spclient.New(ctx, &sprest.Config{
//	    SiteURL:      "https://contoso.sharepoint.com/sites/team",
//	    ClientID:     "client-id",
//	    ClientSecret: "client-secret",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  tasks, err := cli.Lists().Define("Team Tasks", nil)
//	  if err != nil { log.Fatal(err) }
//
//	  result, err := tasks.Query(ctx, sprest.Query{"top": 10}, nil)
//	  if err != nil { log.Fatal(err) }
//	  if err := result.Wait(ctx); err != nil { log.Fatal(err) }
//	  for _, item := range result.Items() {
//	    log.Println(item.Get("Title"))
//	  }
//	}
//
// # Helpers
//
// The package also provides convenience constructors NewWithSite,
// NewWithToken and NewWithClientCredentials that wrap New with the
// appropriate configuration.
package spclient
