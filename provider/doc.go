// Package provider implements a small generic provider framework for
// swappable backends.
//
// Factories are registered by name and create providers from a raw
// configuration section; DecodeConfig turns that section into a typed
// struct. A Manager initializes the configured providers and hands out the
// default one, or the first available one chosen by a Selector.
//
//	reg := provider.NewRegistry[engine.Backend]()
//	mgr := provider.NewManager(reg, &provider.PrioritySelector[engine.Backend]{Priority: []string{"whisper", "stub"}}, log)
//	mgr.Register("whisper", whisper.Factory)
//	_ = mgr.Initialize(ctx, "whisper", cfg)
//	backend, _ := mgr.Get(ctx)
package provider
