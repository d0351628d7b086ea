/*
   MIPS32 O32 instruction field definitions

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   ROBERT M SUPNIK BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

*/

package cpu

// Primary opcode field values, bits [31:26].
const (
	opSPECIAL  = 0x00
	opREGIMM   = 0x01
	opJ        = 0x02
	opJAL      = 0x03
	opBEQ      = 0x04
	opBNE      = 0x05
	opBLEZ     = 0x06
	opBGTZ     = 0x07
	opADDIU    = 0x09
	opSLTI     = 0x0A
	opSLTIU    = 0x0B
	opANDI     = 0x0C
	opORI      = 0x0D
	opXORI     = 0x0E
	opAUI      = 0x0F
	opCOP1     = 0x11
	opPCREL    = 0x3B
	opSPECIAL2 = 0x1C
	opSPECIAL3 = 0x1F
	opLB       = 0x20
	opLH       = 0x21
	opLWL      = 0x22
	opLW       = 0x23
	opLBU      = 0x24
	opLHU      = 0x25
	opLWR      = 0x26
	opSB       = 0x28
	opSH       = 0x29
	opSWL      = 0x2A
	opSW       = 0x2B
	opSWR      = 0x2E
	opLL       = 0x30
	opLWC1     = 0x31
	opSC       = 0x38
	opSWC1     = 0x39
)

// SPECIAL (opcode 0) funct field values, bits [5:0].
const (
	fnSLL     = 0x00
	fnSRLROTR = 0x02
	fnSRA     = 0x03
	fnSLLV    = 0x04
	fnSRLV    = 0x06
	fnSRAV    = 0x07
	fnJR      = 0x08
	fnJALR    = 0x09
	fnMOVZ    = 0x0A
	fnMOVN    = 0x0B
	fnSYSCALL = 0x0C
	fnBREAK   = 0x0D
	fnSYNC    = 0x0F
	fnMFHI    = 0x10
	fnMFLO    = 0x12
	fnMULT    = 0x18
	fnMULTU   = 0x19
	fnDIV     = 0x1A
	fnDIVU    = 0x1B
	fnADD     = 0x20
	fnADDU    = 0x21
	fnSUB     = 0x22
	fnSUBU    = 0x23
	fnAND     = 0x24
	fnOR      = 0x25
	fnXOR     = 0x26
	fnNOR     = 0x27
	fnSLT     = 0x2A
	fnSLTU    = 0x2B
	fnTEQ     = 0x34
)

// SPECIAL2 (opcode 0x1C) funct field values.
const (
	fn2MUL = 0x02
)

// SPECIAL3 (opcode 0x1F) funct field values.
const (
	fn3EXT   = 0x00
	fn3ALIGN = 0x20 // within BSHFL (funct 0x20), shift-bit selects ALIGN vs others
	fn3RDHWR = 0x3B
)

// REGIMM (opcode 1) rt field values, bits [20:16].
const (
	riBLTZ = 0x00
	riBGEZ = 0x01
	riBAL  = 0x11
)
