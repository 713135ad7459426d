package logic

import (
	"fmt"
	"io"

	mmerrors "github.com/FocuswithJustin/mmdb/core/errors"
	"github.com/FocuswithJustin/mmdb/core/proof"
)

// UnknownStep is the proof-step marker for a missing step.
const UnknownStep = "?"

// resolveProofStep resolves one referenced label for the theorem numbered
// thSeq. The reference must be strictly older than the theorem. A
// hypothesis that is out of scope is still legal when the theorem's frames
// carry it.
func (s *System) resolveProofStep(label, ref string, step int, thSeq int64, frame, opt *Frame) (StmtID, error) {
	if ref == label {
		return NoStmt, mmerrors.Newf(mmerrors.ErrForwardReference, label, "step %d refers to the theorem itself", step)
	}
	st, ok := s.Statement(ref)
	if !ok {
		return NoStmt, mmerrors.Newf(mmerrors.ErrUndefinedStatement, label, "step %d refers to undefined %q", step, ref)
	}
	b := st.Base()
	if b.Seq >= thSeq {
		return NoStmt, mmerrors.Newf(mmerrors.ErrForwardReference, label, "step %d refers to %q", step, ref)
	}
	if st.Kind().IsHyp() && !b.Active && !frame.HasHyp(b.ID) && !opt.HasHyp(b.ID) {
		return NoStmt, mmerrors.Newf(mmerrors.ErrInactiveHypothesis, label,
			"step %d refers to out-of-scope hypothesis %q", step, ref)
	}
	return b.ID, nil
}

// ValidateProofList resolves an uncompressed proof. "?" steps become NoStmt.
func (s *System) ValidateProofList(label string, steps []string, thSeq int64, frame, opt *Frame) ([]StmtID, error) {
	if len(steps) == 0 {
		return nil, mmerrors.New(mmerrors.ErrEmptyProof, label, "")
	}
	out := make([]StmtID, len(steps))
	for i, ref := range steps {
		if ref == UnknownStep {
			out[i] = NoStmt
			continue
		}
		id, err := s.resolveProofStep(label, ref, i+1, thSeq, frame, opt)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

// hypCount is the number of proof-stack entries a step consumes.
func (s *System) hypCount(id StmtID) int {
	if frame, ok := AssertionFrame(s.stmts[id]); ok {
		return len(frame.Hyps)
	}
	return 0
}

// DecompressProof validates the label list of a compressed proof, decodes
// its numeral blocks and expands the result into a full step array.
//
// Index 1..m names the theorem's mandatory hypotheses, m+1..m+n the label
// list, and anything above that a subproof tagged earlier with Z, in tag
// order.
func (s *System) DecompressProof(label string, thSeq int64, frame, opt *Frame, labels, blocks []string) ([]StmtID, error) {
	refs := make([]StmtID, 0, len(frame.Hyps)+len(labels))
	refs = append(refs, frame.Hyps...)
	for i, ref := range labels {
		id, err := s.resolveProofStep(label, ref, i+1, thSeq, frame, opt)
		if err != nil {
			return nil, err
		}
		if frame.HasHyp(id) {
			return nil, mmerrors.Newf(mmerrors.ErrMalformedProof, label,
				"mandatory hypothesis %q may not appear in the label list", ref)
		}
		refs = append(refs, id)
	}

	var (
		out   []StmtID
		stack []int // start offset in out of each pending subproof
		saved [][]StmtID
	)
	push := func(id StmtID, hyps int, offset int) error {
		start := len(out)
		if hyps > 0 {
			if hyps > len(stack) {
				return mmerrors.Newf(mmerrors.ErrMalformedProof, label,
					"step at offset %d needs %d hypotheses, only %d available", offset, hyps, len(stack))
			}
			start = stack[len(stack)-hyps]
			stack = stack[:len(stack)-hyps]
		}
		out = append(out, id)
		stack = append(stack, start)
		return nil
	}

	dec := proof.NewDecoder(blocks...)
	for {
		step, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapEncoding(label, err)
		}

		switch {
		case step.Repeat:
			if len(stack) == 0 {
				return nil, mmerrors.Newf(mmerrors.ErrMalformedProof, label, "nothing to tag at offset %d", step.Offset)
			}
			sub := out[stack[len(stack)-1]:]
			saved = append(saved, append([]StmtID(nil), sub...))

		case step.Unknown():
			if err := push(NoStmt, 0, step.Offset); err != nil {
				return nil, err
			}

		case step.Index <= len(refs):
			id := refs[step.Index-1]
			if err := push(id, s.hypCount(id), step.Offset); err != nil {
				return nil, err
			}

		case step.Index <= len(refs)+len(saved):
			start := len(out)
			out = append(out, saved[step.Index-len(refs)-1]...)
			stack = append(stack, start)

		default:
			return nil, wrapEncoding(label, &mmerrors.EncodingError{Offset: step.Offset, Err: mmerrors.ErrIndexRange})
		}
	}

	if len(out) == 0 {
		return nil, mmerrors.New(mmerrors.ErrEmptyProof, label, "")
	}
	return out, nil
}

// wrapEncoding reports a decoding failure against the theorem being built.
func wrapEncoding(label string, err error) error {
	return fmt.Errorf("theorem %q: %w", label, err)
}
