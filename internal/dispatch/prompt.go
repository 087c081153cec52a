package dispatch

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

const fullPrompt = `
任务目标：填写{{SUBJECT}}的尽职调查问卷，按章节顺序逐步完成所有空白字段的填写

你必须区分以下两种情况：

1. 我给你一个提问列表，比如：
{238: "2. 请说明公司整体的优势和劣势分别是什么。", 273: "3. 请说明公司近三年的基本财务状况（万元）。"}
前面的数字是行数，后面的文字是问题（我会给你{{COUNT}}个问题）。

2. 我给你一个简化过的需要填写的表格（通过 <tr>...</tr> 标签表示）。
e.g. 输入
<tr>\n ...\n </tr>

如果识别为第一种情况，仅返回对于问题的答案。按照以下步骤返回答案：
1. 如果检测到某一个内容不是需要填写的信息，或者看到的是一个空字符，那么用一个“=”字符代替
2. 如果问题是开放性的、或者没有提供原始数据，或者没有足够信息回答，请基于常见情况生成合理答案，不要留下空白或填“=”。然后，在答案的最后面加一个括号：“（请根据实际情况填写）”
3. 如果问题中包含很多子问题，你必须细致回答每一个能回答的问题。
{{OUTPUT}}

如果识别为第二种情况，按以下规则填写表格，识别表格中的问题格式和表格的格式，按照表格格式填写内容。
{{TABLE_RULES}}
10. 输出的时候返回表格不要是真正的html格式，而是用\n来分隔每一行。
11. □ 如果遇到这类符号，用☑来替代正确勾选的答案，如果没有那么返回原来的符号。

e.g. 输出
<tr>\n 职务\n xxx <!-- 绝对编码：2607 -->\n ...\n </tr>

真正输入：
`

const pipeOutput = `4. 最后按照以下格式分隔然后输出，使用符号 ||| 分隔答案（中间不加空格）：
"答案1|||答案2|||...|||答案{{COUNT}}"

不要用1. 2. 3. 等序号。严格按照我给你的格式回答。`

const structuredOutput = `4. 只输出一个 JSON 对象，不要输出其他内容，格式如下（anchor 为问题前面的数字）：
{"answers":[{"anchor":238,"answer":"答案1"},{"anchor":273,"answer":"答案2"}]}`

const tableRules = `填写表格时的具体规则：
1. 将所有 &nbsp; 替换为对应的答案。你要去识别表格中空格对应的问题，然后回答问题。
2. 不要删除表格中的任何信息。
3. 不要添加任何额外信息到表格中。
4. 不要改变表格中问题的顺序。
5. 不要改变表格中问题的格式。
6. 不要改变表格中答案的格式。
7. 不要改变表格的格式。
8. 当检测到"\n"的时候请保留这两个符号。
9. 保留绝对编码。`

const reducedPrompt = `
按以下规则填写表格，识别表格中的问题格式和表格的格式，按照表格格式填写内容。

{{TABLE_RULES}}
10. 输出的时候返回表格应该有的HTML格式。

e.g. 输出
<tr>\n 职务\n...\n </tr>

`

// Prompts renders the instruction text for a batch.
type Prompts struct {
	// Subject is the organisation the questionnaire is about.
	Subject string
	// Structured asks for anchored JSON answers instead of the pipe protocol.
	Structured bool
}

// Full returns the complete instruction followed by the batch payload.
func (p Prompts) Full(b Batch) string {
	output := pipeOutput
	if p.Structured {
		output = structuredOutput
	}
	count := strconv.Itoa(len(b.Items))
	r := strings.NewReplacer(
		"{{SUBJECT}}", p.subject(),
		"{{OUTPUT}}", strings.ReplaceAll(output, "{{COUNT}}", count),
		"{{TABLE_RULES}}", tableRules,
		"{{COUNT}}", count,
	)
	return r.Replace(fullPrompt) + "\n" + Payload(b)
}

// Reduced returns the table-only fallback instruction followed by the batch
// payload.
func (p Prompts) Reduced(b Batch) string {
	return strings.Replace(reducedPrompt, "{{TABLE_RULES}}", tableRules, 1) + "\n" + Payload(b)
}

func (p Prompts) subject() string {
	if p.Subject == "" {
		return "本公司"
	}
	return p.Subject
}

// Payload renders the batch as an ordered {anchor: "text"} literal. Text is
// JSON escaped, so newlines inside a table travel as \n.
func Payload(b Batch) string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, it := range b.Items {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(it.Anchor))
		sb.WriteString(": ")
		sb.WriteString(quote(it.Text))
	}
	sb.WriteByte('}')
	return sb.String()
}

func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
