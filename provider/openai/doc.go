/*
Package openai implements the provider.Session interface for OpenAI's chat
models. It translates conversation history into OpenAI's chat completion
format, streams the response back, and folds transport failures into Error
events so sibling sessions keep running.

A session is created with the client options of the official SDK and carries
its own generation defaults:

	sess := openai.New(option.WithAPIKey("your-key")).
		WithModel(openai.DefaultModel).
		WithTemperature(0.7)

Every call to Stream launches one cancellable sequence of Chunk events
terminated by either Done or Error. User messages that carry image data are
sent as multi-part messages with a data URL image part.
*/
package openai
