/*
Package sketchy drives the Sketchy image workflow from the client side:
upload a batch of images, select one, analyze it into a prompt, regenerate an
image from that prompt and refine the result through a chain of improvements.

# Concept

The workflow state lives in the client. Each step is one request to the
Sketchy HTTP API; its result is committed only when the request succeeds, and
every commit is persisted so a session survives a restart. Raw files are never
stored: after a restart the user re-supplies them and they are matched back to
the stored uploads by name and type.

# Usage

	client := sketchy.New("http://localhost:8080/api/v1",
		sketchy.WithStore(file.New(".sketchy/state")),
	)

	files, _ := local.OpenAll([]string{"cat.png", "dog.png"})
	res, err := client.Upload(ctx, files)
	if err != nil {
		log.Fatal(err)
	}
	_ = client.Select(ctx, res.ImageIDs[0])

	analysis, _ := client.Analyze(ctx)
	regen, _ := client.Regenerate(ctx, analysis.PromptDescription)
	link, _ := client.Improve(ctx, "make it warmer")
*/
package sketchy
