package cli

import (
	"errors"

	"github.com/ncruces/zenity"
)

// ErrPickCanceled is returned when the user closes the picker.
var ErrPickCanceled = errors.New("file selection canceled")

// PickScreenshots opens the native multi-file picker filtered to images.
func PickScreenshots() ([]string, error) {
	paths, err := zenity.SelectFileMultiple(
		zenity.Title("Select CCTV screenshots"),
		zenity.FileFilters{
			{
				Name: "Images",
				Patterns: []string{
					"*.jpg", "*.jpeg", "*.png", "*.gif", "*.webp",
					"*.heic", "*.heif",
				},
			},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return nil, ErrPickCanceled
		}
		return nil, err
	}
	return paths, nil
}
