//go:build windows

// Package webgpu provides the WGSL compute shaders for the estimation
// pipeline.
package webgpu

import "fmt"

// pipelineShaderTemplate holds all three pipeline stages. The workgroup size
// must be a compile-time constant in WGSL, so the source is instantiated per
// configuration: %[1]d is workersPerBlock, %[2]d is the reduction buffer
// length (2 * workersPerBlock).
//
// Generator state is xorshift128 (WGSL has no 64-bit integers), one
// vec4<u32> per worker, seeded by splitmix-style hashing of the run seed and
// the worker's sequence index. The block reduction is a full barrier tree;
// the narrow-group exchange of the simulated device maps onto subgroup
// operations, which portable WGSL does not expose.
const pipelineShaderTemplate = `
@group(0) @binding(0) var<storage, read_write> states: array<vec4<u32>>;
@group(0) @binding(1) var<storage, read_write> partials: array<f32>;

struct Params {
    seed_lo: u32,
    seed_hi: u32,
    samples: u32,
    num_blocks: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

const WORKERS: u32 = %[1]du;

var<workgroup> counts: array<f32, %[2]d>;

fn splitmix(v: u32) -> u32 {
    var x = v + 0x9e3779b9u;
    x = (x ^ (x >> 16u)) * 0x85ebca6bu;
    x = (x ^ (x >> 13u)) * 0xc2b2ae35u;
    return x ^ (x >> 16u);
}

fn seed_state(seq: u32) -> vec4<u32> {
    var s = vec4<u32>(0u);
    s.x = splitmix(params.seed_lo ^ splitmix(seq * 4u));
    s.y = splitmix(params.seed_hi ^ splitmix(seq * 4u + 1u));
    s.z = splitmix(params.seed_lo ^ splitmix(seq * 4u + 2u));
    s.w = splitmix(params.seed_hi ^ splitmix(seq * 4u + 3u));
    if (s.x == 0u && s.y == 0u && s.z == 0u && s.w == 0u) {
        s.x = 1u;
    }
    return s;
}

fn xorshift128(s: ptr<function, vec4<u32>>) -> u32 {
    var t = (*s).w;
    let v = (*s).x;
    (*s).w = (*s).z;
    (*s).z = (*s).y;
    (*s).y = v;
    t = t ^ (t << 11u);
    t = t ^ (t >> 8u);
    (*s).x = t ^ v ^ (v >> 19u);
    return (*s).x;
}

fn uniform_f32(s: ptr<function, vec4<u32>>) -> f32 {
    return f32(xorshift128(s) >> 8u) * (1.0 / 16777216.0);
}

fn block_rank(wid: vec3<u32>, nwg: vec3<u32>) -> u32 {
    return wid.y * nwg.x + wid.x;
}

@compute @workgroup_size(%[1]d)
fn seed_all(@builtin(local_invocation_id) lid: vec3<u32>,
            @builtin(workgroup_id) wid: vec3<u32>,
            @builtin(num_workgroups) nwg: vec3<u32>) {
    let seq = block_rank(wid, nwg) * WORKERS + lid.x;
    states[seq] = seed_state(seq);
}

@compute @workgroup_size(%[1]d)
fn sample_reduce(@builtin(local_invocation_id) lid: vec3<u32>,
                 @builtin(workgroup_id) wid: vec3<u32>,
                 @builtin(num_workgroups) nwg: vec3<u32>) {
    let lane = lid.x;
    let block = block_rank(wid, nwg);
    let seq = block * WORKERS + lane;
    var s = states[seq];

    // Batch 1: strict classification into the worker's own slot.
    var inside: f32 = 0.0;
    for (var i: u32 = 0u; i < params.samples; i = i + 1u) {
        let x = uniform_f32(&s);
        let y = uniform_f32(&s);
        if (x * x + y * y < 1.0) {
            inside = inside + 1.0;
        }
    }
    counts[lane] = inside;

    // Batch 2: same advanced state, inclusive boundary, offset slot.
    inside = 0.0;
    for (var i: u32 = 0u; i < params.samples; i = i + 1u) {
        let x = uniform_f32(&s);
        let y = uniform_f32(&s);
        if (x * x + y * y <= 1.0) {
            inside = inside + 1.0;
        }
    }
    counts[lane + WORKERS] = inside;
    states[seq] = s;
    workgroupBarrier();

    // Barrier tree over the 2*WORKERS entries down to one converged sum.
    var width = WORKERS;
    loop {
        if (lane < width) {
            counts[lane] = counts[lane] + counts[lane + width];
        }
        workgroupBarrier();
        if (width == 1u) {
            break;
        }
        width = width / 2u;
    }

    if (lane == 0u) {
        partials[block] = counts[0];
    }
}

@compute @workgroup_size(1)
fn collapse() {
    var sum: f32 = 0.0;
    for (var i: u32 = 0u; i < params.num_blocks; i = i + 1u) {
        sum = sum + partials[i];
    }
    partials[0] = sum;
}
`

// pipelineShader instantiates the shader source for a block width.
func pipelineShader(workersPerBlock int) string {
	return fmt.Sprintf(pipelineShaderTemplate, workersPerBlock, 2*workersPerBlock)
}
