package memory

import "fmt"

func wrap(sentinel, err error) error {
	return fmt.Errorf("%w: %w", sentinel, err)
}
