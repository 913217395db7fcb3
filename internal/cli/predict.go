package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"yolodetect/internal/client"
	"yolodetect/internal/ui/session"
)

// streamPredictor sends uploads over one /ws/detect connection.
type streamPredictor struct {
	stream *client.Stream
}

func (s streamPredictor) Predict(ctx context.Context, filename string, data []byte) (*client.Prediction, error) {
	return s.stream.Detect(ctx, data)
}

func newPredictCommand(opts *rootOptions, defaultOut string) *cobra.Command {
	var (
		outDir    string
		useStream bool
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "predict <image>...",
		Short: "Detect objects in images and save annotated copies with their JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var api session.Predictor = opts.api
			if useStream {
				stream, err := opts.api.DialStream(ctx)
				if err != nil {
					return err
				}
				defer stream.Close()
				api = streamPredictor{stream: stream}
			}
			s := session.New(api, outDir)

			bar := progressbar.NewOptions(len(args),
				progressbar.OptionSetDescription("Detecting"),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionShowCount(),
				progressbar.OptionSetVisibility(!quiet),
			)

			failed := 0
			for _, path := range args {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				n, err := predictOne(ctx, s, path)
				bar.Add(1)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "\n%s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d object(s)\n", path, n)
			}
			bar.Finish()

			if failed > 0 {
				return fmt.Errorf("%d of %d image(s) failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", defaultOut, "directory for annotated images and JSON")
	cmd.Flags().BoolVar(&useStream, "stream", false, "send images over one WebSocket connection")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}

func predictOne(ctx context.Context, s *session.Session, path string) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}

	outcome, err := s.Run(ctx, path)
	if err != nil {
		return 0, err
	}

	imagePath, jsonPath := s.OutputPaths(path)
	if err := session.SaveAnnotated(outcome, imagePath); err != nil {
		return 0, err
	}
	if err := session.SaveJSON(outcome, jsonPath); err != nil {
		return 0, err
	}
	return outcome.Prediction.Result.NumDetections, nil
}
