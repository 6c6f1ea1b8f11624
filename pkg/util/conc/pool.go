// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conc

import (
	"github.com/cockroachdb/errors"
	ants "github.com/panjf2000/ants/v2"

	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

// Pool 是对 ants.Pool 的封装。
// size <= 0 表示不限制并发数量。
type Pool struct {
	inner *ants.Pool
	opt   *poolOption
}

// NewPool 创建一个协程池，选项非法时直接 panic。
func NewPool(size int, opts ...PoolOption) *Pool {
	opt := &poolOption{}
	for _, o := range opts {
		o(opt)
	}

	pool, err := ants.NewPool(size, opt.antsOptions()...)
	if err != nil {
		panic(err)
	}

	return &Pool{
		inner: pool,
		opt:   opt,
	}
}

// Submit 提交一个任务。
// 非阻塞模式下池已满返回 ErrServiceRateLimit，池已释放返回 ErrServiceStopped。
func (pool *Pool) Submit(task func()) error {
	err := pool.inner.Submit(func() {
		if pool.opt.preHandler != nil {
			pool.opt.preHandler()
		}
		task()
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ants.ErrPoolOverload):
		return errors.Wrapf(merr.ErrServiceRateLimit, "pool overload, cap=%d", pool.Cap())
	case errors.Is(err, ants.ErrPoolClosed):
		return errors.Wrap(merr.ErrServiceStopped, "pool closed")
	default:
		return err
	}
}

// Cap 返回协程池容量，不限容量时为 -1。
func (pool *Pool) Cap() int {
	return pool.inner.Cap()
}

// Release 释放协程池，不等待正在执行的任务。
func (pool *Pool) Release() {
	pool.inner.Release()
}
