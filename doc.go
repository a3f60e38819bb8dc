// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package eden is the top-level module for the EDEN model compiler and
parallel time-stepping engine. This top level carries no functional code;
everything is organized into sub-packages:

  - tables: the flat data-plane table families and index vectors.
  - packedref: the packed (table, entry) cross-reference encoding.
  - units: the native unit system and scale-factor conversions.
  - model: the resolved NeuroML/LEMS model consumed by the rest of the
    pipeline.
  - sig: the Work Item Signature builder.
  - kernel: the per-cell-type C kernel emitter, compiler, and loader.
  - instantiate: the population/projection/input/data-writer walker that
    populates tables from a signature.
  - decomp: GID partitioning, recv/send list discovery, and mirror buffers
    for MPI-distributed runs.
  - engine: the double-buffered, MPI-distributed time-stepping loop.
  - trajlog: trajectory logger output formatting.
  - config: the simulator's external configuration surface.
  - edenerr: the fatal error taxonomy shared by every stage.
  - cmd/edenrun: a thin harness wiring the above together.
*/
package eden
