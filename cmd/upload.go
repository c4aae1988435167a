package cmd

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// detectContentType trusts the extension first and falls back to sniffing.
func detectContentType(f *os.File) (string, error) {
	if ct := mime.TypeByExtension(filepath.Ext(f.Name())); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err == nil {
			return mediaType, nil
		}
	}

	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}

func UploadHandler(cmd *cobra.Command, args []string, e *env) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	contentType, _ := cmd.Flags().GetString("content-type")
	if contentType == "" {
		contentType, err = detectContentType(f)
		if err != nil {
			return err
		}
	}

	url, err := e.client.UploadImage(cmd.Context(), filepath.Base(args[0]), contentType, f)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}

func newUploadCmd() *cobra.Command {
	uploadCmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload an image and print its URL",
		Args:  cobra.ExactArgs(1),
		RunE:  withEnv(UploadHandler),
	}
	uploadCmd.Flags().String("content-type", "", "Override the detected content type")
	return uploadCmd
}
