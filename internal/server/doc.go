// Package server exposes the generation engine and account service over HTTP.
//
// # Routes
//
//	POST /api/convert   image-to-image generation ({imageUrl, prompt, functionType?, outputNum?})
//	POST /api/text2img  text-to-image generation ({prompt})
//	GET|POST /api/auth  ?action=register|login|setVIP|me
//	GET  /health        liveness and provider credential status
//
// Anything else falls through to the static front end when one is configured.
//
// # Middleware
//
// Every request passes through [Recovery], [RequestID], [AccessLog], [CORS] and [BodyLimit].
// The generation routes are additionally guarded by a per-client [RateLimiter].
// OPTIONS requests end in [CORS] with 200; a known path with the wrong method yields 405.
//
// # Errors
//
// Failures are always written as {"success": false, "error": "..."} with the status chosen by [StatusFor].
//
// # Handler Interface
//
// Handlers implement [Handler], which lets each one register its own routes on a gin router
// and report them for startup logging.
package server
