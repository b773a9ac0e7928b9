package sandboxspec

// StageSystem is C6's stageSystem: bind graphics/audio device nodes
// read-write.
func StageSystem(rt *Runtime, ctx *ComposeCtx) error {
	rt.AppendMount(bindMount(MountBind, "/dev/dri", "/dev/dri", rw()))
	rt.AppendMount(bindMount(MountBind, "/dev/snd", "/dev/snd", rw()))
	return nil
}
