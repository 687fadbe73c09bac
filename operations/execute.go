package operations

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotSerializable = errors.New("data cannot be recorded in a report, avoid types that can't be marshaled to JSON")

// ExecuteOperation runs operation once and records the run.
//
// Operations are never retried: a failed transaction or Safe request is reported to the caller,
// who decides whether to submit it again.
//
// The input and output must marshal to JSON so the run can be persisted by a FileReporter.
func ExecuteOperation[IN, OUT, DEP any](
	b Bundle,
	operation *Operation[IN, OUT, DEP],
	deps DEP,
	input IN,
) (Report[IN, OUT], error) {
	if err := serializable(input); err != nil {
		return Report[IN, OUT]{}, fmt.Errorf("operation %s input: %w", operation.def.ID, err)
	}

	output, err := operation.execute(b, deps, input)
	if err == nil {
		if serr := serializable(output); serr != nil {
			return Report[IN, OUT]{}, fmt.Errorf("operation %s output: %w", operation.def.ID, serr)
		}
	}

	report := NewReport(operation.def, input, output, err)
	if rerr := b.reporter.AddReport(genericReport(report)); rerr != nil {
		return Report[IN, OUT]{}, errors.Join(err, fmt.Errorf("failed to record report: %w", rerr))
	}

	if err != nil {
		b.Logger.Errorw("Operation failed", "id", operation.def.ID, "report_id", report.ID, "error", err)

		return report, err
	}

	return report, nil
}

func serializable(v any) error {
	if _, err := json.Marshal(v); err != nil {
		return fmt.Errorf("%w: %w", ErrNotSerializable, err)
	}

	return nil
}
