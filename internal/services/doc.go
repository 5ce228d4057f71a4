// Package services implements the outbound provider client and the account services.
//
// # Provider client
//
// [DashScopeService] implements [TaskClient] against the DashScope image-synthesis API:
//
//   - CreateTask posts to {base}/services/aigc/{image2image|text2image}/image-synthesis with the
//     X-DashScope-Async header and returns a task id, or the results when the provider answers synchronously.
//   - GetTask issues one GET {base}/tasks/{id} and maps task_status onto [models.TaskState].
//
// The bearer credential is injected by an [oauth2.Transport] built from a static token source, so the
// request code never touches the Authorization header. Response bodies are checked against the
// envelope schemas in the validation package before they are decoded.
//
// # Accounts
//
// [AuthService] registers users with bcrypt hashes, checks logins and flips the VIP flag on top of any
// [UserStore]. [TokenService] issues the HS256 tokens returned at login.
//
// # Error Handling
//
// Services wrap sentinels from the shared package:
//   - [shared.ErrMissingCredentials] : no provider key, returned before any request
//   - [shared.ErrTaskCreation] : provider rejected task creation, with an [APIError] in the chain
//   - [shared.ErrMalformedResponse] : provider body violated the expected envelope
//   - [shared.ErrTransientNetwork] : a status query could not be completed
//   - [shared.ErrUserExists], [shared.ErrInvalidCredentials], [shared.ErrNotAuthenticated] : account flows
package services
