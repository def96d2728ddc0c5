package fluid

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fluid/engine/renderer/bind_group_provider"
)

// PassRecord describes what one pass did in the last displayed frame.
type PassRecord struct {
	Pass Pass
	// Draws is the number of draw calls issued.
	Draws int
	// Instances is the number of instances drawn by the last draw call.
	Instances uint32
	// Uniforms are the frame uniform bytes bound while the pass ran.
	Uniforms []byte
	// Err is the reason the pass did not complete, if any.
	Err error
}

// sequencer runs the passes of one frame in their fixed order. It is the only place that
// decides pass ordering.
type sequencer struct {
	r        renderer.Renderer
	targets  *RenderTargetSet
	programs [PassCount]*PassProgram

	frameProvider bind_group_provider.BindGroupProvider
	// inputs holds the render target bind group of every pass that samples targets.
	inputs [PassCount]bind_group_provider.BindGroupProvider
	quad   bind_group_provider.BindGroupProvider
	env    *Environment

	frame uint64
	log   []PassRecord
}

// run executes every pass for one frame. Failures are collected and returned joined; a
// failing pass never stops the passes after it from being attempted. Logging is left to
// the caller, which sees the same error every frame while a failure persists.
func (s *sequencer) run(particles ParticleStream, uniforms []byte) error {
	s.frame++
	s.log = s.log[:0]

	var errs []error
	for _, p := range passOrder {
		rec := s.runPass(p, particles, uniforms)
		s.log = append(s.log, rec)
		if rec.Err != nil {
			errs = append(errs, fmt.Errorf("%v pass: %w", p, rec.Err))
		}
	}
	return errors.Join(errs...)
}

func (s *sequencer) runPass(p Pass, particles ParticleStream, uniforms []byte) PassRecord {
	rec := PassRecord{Pass: p, Uniforms: uniforms}
	prog := s.programs[p]
	if prog == nil || prog.Pipeline == nil {
		rec.Err = errors.Join(ErrProgramUnavailable, s.clearSurfaceIfComposite(p))
		return rec
	}

	var desc renderer.PassDescriptor
	var err error
	inputs := prog.InputTargets()
	if len(inputs) > 0 || prog.Binding == BindingSurface {
		if desc, err = s.targets.ResetForSample(s.frame, inputs...); err != nil {
			rec.Err = errors.Join(err, s.clearSurfaceIfComposite(p))
			return rec
		}
	}
	if prog.Binding != BindingSurface {
		if desc, err = s.targets.BindForWrite(s.frame, prog.Binding); err != nil {
			rec.Err = err
			return rec
		}
	}

	err = s.r.RenderPass(desc, func(enc renderer.PassEncoder) error {
		if err := enc.SetPipeline(prog.Pipeline); err != nil {
			return err
		}
		if err := enc.SetBindGroup(0, s.frameProvider); err != nil {
			return err
		}
		if prog.TargetGroup >= 0 {
			if err := s.bind(enc, prog.TargetGroup, s.inputs[p]); err != nil {
				return err
			}
		}
		if prog.EnvironmentGroup >= 0 && prog.draw != drawSkybox {
			if err := s.bind(enc, prog.EnvironmentGroup, s.env.cubemapProvider()); err != nil {
				return err
			}
		}

		switch prog.draw {
		case drawSprites:
			if particles.Count == 0 {
				return nil
			}
			enc.SetVertexBuffer(0, particles.Positions)
			enc.SetVertexBuffer(1, particles.Colors)
			enc.Draw(spriteVertices, particles.Count)
			rec.Draws, rec.Instances = 1, particles.Count
		case drawQuad:
			enc.DrawMesh(s.quad, 1)
			rec.Draws, rec.Instances = 1, 1
		case drawSkybox:
			walls, faces, err := s.env.skyboxDraws()
			if errors.Is(err, ErrNoSkybox) {
				return nil
			}
			for f := range CubeFaceCount {
				if err := s.bind(enc, prog.EnvironmentGroup, faces[f]); err != nil {
					return err
				}
				enc.DrawMesh(walls[f], 1)
				rec.Draws++
			}
			rec.Instances = 1
		}
		return nil
	})
	if err != nil {
		rec.Err = err
		return rec
	}
	if prog.Binding != BindingSurface {
		s.targets.MarkWritten(s.frame, prog.Binding)
	}
	return rec
}

func (s *sequencer) bind(enc renderer.PassEncoder, group int, provider bind_group_provider.BindGroupProvider) error {
	if provider == nil {
		return fmt.Errorf("group %d: %w", group, renderer.ErrBindGroupNotInitialized)
	}
	return enc.SetBindGroup(uint32(group), provider)
}

// clearSurfaceIfComposite still clears the screen when the composite pass cannot run, so a
// frame is always presented.
func (s *sequencer) clearSurfaceIfComposite(p Pass) error {
	if p != PassComposite {
		return nil
	}
	desc, err := s.targets.ResetForSample(s.frame)
	if err != nil {
		return fmt.Errorf("surface clear: %w", err)
	}
	if err := s.r.RenderPass(desc, func(renderer.PassEncoder) error { return nil }); err != nil {
		return fmt.Errorf("surface clear: %w", err)
	}
	return nil
}

// passLog returns a copy of the last frame's records.
func (s *sequencer) passLog() []PassRecord {
	return append([]PassRecord(nil), s.log...)
}
