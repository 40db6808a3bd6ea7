// Package sprest provides types and helpers for working with the SharePoint
// 2013 REST API in its verbose OData dialect.
//
// # Overview
//
// The package turns a list title into a resource type (List) whose
// operations build request descriptors, hand them to a Transport and merge
// the normalized response into a live result handle. It contains no network
// code: the spclient package wires a concrete transport that signs requests
// with a bearer token and a form digest.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/sprest/pkg/spclient"
//	  "github.com/fivetwenty-io/sprest/pkg/sprest"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := spclient.New(ctx, &sprest.Config{
//	    SiteURL:     "https://contoso.sharepoint.com/sites/team",
//	    AccessToken: "...",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  tasks, err := cli.Lists().Define("Team Tasks", &sprest.ListOptions{
//	    Query: sprest.Query{sprest.QuerySelect: []string{"Id", "Title"}},
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  result, err := tasks.Query(ctx, sprest.Query{sprest.QueryTop: 10}, nil)
//	  if err != nil { log.Fatal(err) }
//
//	  if err := result.Wait(ctx); err != nil { log.Fatal(err) }
//	  for _, item := range result.Items() {
//	    log.Println(item.ID(), item.Get("Title"))
//	  }
//	}
//
// # Results
//
// Every list operation returns a *Result immediately. Its Item (or Items,
// for collections) is filled in place once Done is closed. Errors raised
// before a request is sent are returned directly and wrap
// ErrInvalidArguments; failures afterwards settle the result.
//
// # Concurrency
//
// Updates carry the item's ETag in IF-MATCH. A concurrent change on the
// server fails the update with HTTP 412 (see IsPreconditionFailed) unless
// the update is forced.
//
// # Errors
//
// Remote failures are represented by ResponseError. Helpers such as
// IsNotFound, IsUnauthorized and IsPreconditionFailed make it easy to branch
// on common cases.
//
// # Interceptors
//
// InterceptorChain lets callers observe or modify HTTP exchanges. Logging,
// header, rate limiting, circuit breaker and metrics interceptors are
// provided.
package sprest
