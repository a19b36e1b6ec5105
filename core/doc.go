// Package core holds the provider-independent pieces of qwen-edit: request
// and response types, the error taxonomy, and the edit pipeline.
//
// # Pipeline
//
// An edit is one linear pass with no retries:
//
//  1. [BuildMessages] turns image references and a prompt into a single user
//     message. URLs pass through; local files become base64 data URIs.
//  2. A [Provider] sends the message to the remote service.
//  3. [ExtractImageURL] finds the result URL in the response.
//  4. A [Fetcher] downloads the bytes behind that URL.
//
// [Editor] wires the four steps together:
//
//	p := dashscope.New(apiKey)
//	ed := core.NewEditor(p, download.New())
//	res, err := ed.EditToFile(ctx, &core.EditRequest{
//	    Images: []string{"cat.png"},
//	    Prompt: "add a hat",
//	}, "out.png")
//
// # Errors
//
// Local files that do not exist fail with [ErrImageNotFound]. A response that
// breaks the expected shape fails with [ErrMalformedResponse]; a well-formed
// response without an image fails with [ErrNoImageFound]. HTTP failures are
// reported as [*ProviderError] wrapping a transport sentinel such as
// [ErrUnauthorized] or [ErrNetwork].
package core
