// Package httpapp provides the HTTP server for gamerev.
//
// Every API request passes through an explicit Pipeline:
//
//	trace -> log -> identity -> require JSON -> JSON translator -> router
//
// The JSON translator decodes the request body into an Exchange before the
// router runs and encodes the handler's result, or its error, afterwards.
//
// The rest variant mounts the flat /{gameId}/ resource and also the
// /{gameId}/revs/ subresources, so it serves a superset of the flat routes
// and every Location header it returns resolves.
//
//	@title						gamerev API
//	@version					1.0
//	@description				Revision chains for game sessions with optimistic concurrency.
//	@description
//	@description				## Identity
//	@description
//	@description				Callers identify themselves with cookies. The restlike API expects
//	@description				`uid` (the letter `a` followed by a positive integer) and `token`
//	@description				(a Version 4 UUID). The rest API expects a single `user_id` cookie
//	@description				holding a Version 4 UUID.
//	@description
//	@description				## Revisions
//	@description
//	@description				Each game has an append-only chain of revisions starting at 0. To
//	@description				append, send the index of the revision your change was computed
//	@description				against:
//	@description				```bash
//	@description				curl -X POST /{gameId}/revs/ -H 'Content-Type: application/json' \
//	@description				  -b 'uid=a1; token=...' \
//	@description				  -d '{"rev":0,"ops":[{"op":"set","path":"turn","value":1}]}'
//	@description				```
//	@description				If another revision landed first the response is 409. Fetch the tip
//	@description				and resubmit.
//	@description
//	@description				## Variants
//	@description
//	@description				A deployment serves one variant. The restlike API offers `GET /`
//	@description				and `GET /{gameId}/`. The rest API offers `GET`, `POST` and `PUT`
//	@description				on `/{gameId}/` and also mounts the `/{gameId}/revs/` routes, so its
//	@description				surface is a superset of the flat resource.
//	@description
//	@description				## Errors
//	@description				Errors are JSON objects with `kind`, `title`, `description` and `href`.
//	@description				A request body that is not UTF-8 JSON is answered with status 753.
//
//	@contact.name				gamerev
//	@license.name				MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@tag.name					Games
//	@tag.description			Create, list and inspect games.
//
//	@tag.name					Revisions
//	@tag.description			Append to and read a game's revision chain.
package httpapp
