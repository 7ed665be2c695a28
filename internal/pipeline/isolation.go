package pipeline

import "fmt"

// isolationRules is appended to every pass-1 system prompt. Chunked
// extraction quality depends on the model treating each call as independent
// and never inventing items that are not in the provided text.
const isolationRules = `

【상태 격리 규칙】
1. 이 요청은 완전히 새로운 독립적인 처리입니다.
2. 이전에 처리한 어떤 대화나 데이터와도 무관합니다.
3. 오직 현재 제공된 대화 내용만을 분석하세요.
4. 현재 대화에 없는 정보는 절대 추가하지 마세요.

【대화 내용 검증 규칙】
1. 반드시 제공된 대화 텍스트에 명시적으로 언급된 항목만 추출하세요.
2. 대화에 없는 장소, 금액, 항목은 절대 포함하지 마세요.
3. 추론이나 가정을 통해 항목을 추가하지 마세요.

【처리 규칙】
1. 모든 외화 금액(EUR, USD 등)은 절대 곱하지 않고 원래 숫자 그대로 사용하세요.
2. 멤버 수와 동일한 인원으로 나눠야 한다는 표현이 있으면 반드시 "n분의1"로 처리하세요.
3. 정산 항목이 있는 경우에만 JSON 배열로 응답하세요.
4. 모든 결과는 반드시 대괄호([])로 묶어 배열 형태로 반환해야 합니다.
`

// enrichmentRules is appended to the pass-2 system prompt.
const enrichmentRules = `

【JSON 응답 규칙】
- 모든 결과는 반드시 대괄호([])로 묶어 배열 형태로 반환해야 합니다.
- 모든 속성명은 큰따옴표(")로 감싸야 합니다.
- 여러 항목이 있는 경우 쉼표(,)로 구분하고 하나의 배열에 넣어야 합니다.
`

// chunkIsolation builds the per-chunk preamble identifying the window so the
// model does not repeat items from other chunks.
func chunkIsolation(index, total int, conversationHash, chunkHash string) string {
	return fmt.Sprintf(`

【청크 처리 격리 규칙 - 청크 %d/%d】
1. 이 청크는 전체 대화의 일부입니다 (청크 %d/%d).
2. 오직 현재 청크에 포함된 메시지만을 분석하세요.
3. 다른 청크나 이전 처리 결과를 절대 참조하지 마세요.
4. 이전 청크에서 언급된 항목을 반복하지 마세요.
5. 대화 식별자: %s
6. 청크 식별자: %s
`, index, total, index, total, conversationHash, chunkHash)
}
